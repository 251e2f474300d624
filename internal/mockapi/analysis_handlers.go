package mockapi

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/argscan/argscan/internal/models"
)

// CreateTaskRequest starts an analysis
type CreateTaskRequest struct {
	FileID       int64          `json:"fileId" binding:"required"`
	TaskName     string         `json:"taskName"`
	AnalysisType string         `json:"analysisType" binding:"omitempty,oneof=prophage arg"`
	Parameters   map[string]any `json:"parameters"`
}

// TaskDetail is a task as returned by the API
type TaskDetail struct {
	TaskID       int64  `json:"taskId"`
	UserID       int64  `json:"userId"`
	FileID       int64  `json:"fileId"`
	FileName     string `json:"fileName"`
	TaskName     string `json:"taskName"`
	IsArg        int    `json:"isArg"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	CreatedAt    string `json:"createdAt"`
	CompletedAt  string `json:"completedAt,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// TaskStatusDetail is the progress of a task
type TaskStatusDetail struct {
	TaskID       int64  `json:"taskId"`
	Status       string `json:"status"`
	Progress     int    `json:"progress"`
	StartedAt    string `json:"startedAt,omitempty"`
	CompletedAt  string `json:"completedAt,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// ProphageSummary is one region in a task result
type ProphageSummary struct {
	Name       string `json:"name"`
	Start      int64  `json:"start"`
	End        int64  `json:"end"`
	Confidence int    `json:"confidence"`
	Type       string `json:"type"`
}

// TaskResultDetail summarizes a completed task
type TaskResultDetail struct {
	TaskID        int64             `json:"taskId"`
	FileName      string            `json:"fileName"`
	Status        string            `json:"status"`
	CreatedAt     string            `json:"createdAt"`
	CompletedAt   string            `json:"completedAt"`
	Duration      string            `json:"duration"`
	GenomeLength  int64             `json:"genomeLength"`
	ProphageCount int               `json:"prophageCount"`
	Prophages     []ProphageSummary `json:"prophages"`
}

func taskDetail(t *models.AnalysisTask) TaskDetail {
	d := TaskDetail{
		TaskID:       t.ID,
		UserID:       t.UserID,
		FileID:       t.FileID,
		TaskName:     t.TaskName,
		Status:       t.Status,
		Progress:     t.Progress,
		CreatedAt:    formatTime(t.CreatedAt),
		CompletedAt:  formatTimePtr(t.CompletedAt),
		ErrorMessage: t.ErrorMessage,
	}
	if t.IsArg() {
		d.IsArg = 1
	}
	if t.File != nil {
		d.FileName = t.File.OriginalFilename
	}
	return d
}

func (s *Server) createTask(c *gin.Context) {
	session := mustSession(c)

	var req CreateTaskRequest
	if !bindJSON(c, &req) {
		return
	}

	var file models.GenomeFile
	if err := models.FindByID(s.db, req.FileID, &file); err != nil || (file.UserID != session.UserID && !file.IsPublic) {
		fail(c, "failed to create task: file not found")
		return
	}

	analysisType := req.AnalysisType
	if analysisType == "" {
		analysisType = "prophage"
	}
	name := req.TaskName
	if name == "" {
		name = fmt.Sprintf("%s-%s", strings.TrimSuffix(file.OriginalFilename, "."+file.FileFormat), analysisType)
	}
	params, _ := json.Marshal(req.Parameters)

	task := &models.AnalysisTask{
		UserID:       session.UserID,
		FileID:       file.ID,
		TaskName:     name,
		AnalysisType: analysisType,
		Status:       models.TaskPending,
		Parameters:   string(params),
		File:         &file,
	}
	if err := s.db.Omit("File").Create(task).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to create task")
		fail(c, "failed to create task: "+err.Error())
		return
	}

	s.logger.Info().Int64("task_id", task.ID).Int64("file_id", file.ID).Str("type", analysisType).Msg("Analysis task created")
	okMessage(c, "analysis task created", taskDetail(task))
}

func (s *Server) listTasks(c *gin.Context) {
	session := mustSession(c)

	query := s.db.Preload("File").Where("analysis_tasks.user_id = ?", session.UserID)
	if status := c.Query("status"); status != "" {
		query = query.Where("analysis_tasks.status = ?", strings.ToUpper(status))
	}
	if keyword := c.Query("keyword"); keyword != "" {
		like := "%" + keyword + "%"
		query = query.Joins("LEFT JOIN genome_files ON genome_files.id = analysis_tasks.file_id").
			Where("analysis_tasks.task_name LIKE ? OR genome_files.original_filename LIKE ?", like, like)
	}

	var tasks []models.AnalysisTask
	if err := query.Order("analysis_tasks.id DESC").Find(&tasks).Error; err != nil {
		fail(c, "failed to list tasks: "+err.Error())
		return
	}

	out := make([]TaskDetail, 0, len(tasks))
	for i := range tasks {
		out = append(out, taskDetail(&tasks[i]))
	}
	ok(c, out)
}

// ownedTask loads one of the caller's tasks
func (s *Server) ownedTask(c *gin.Context) (*models.AnalysisTask, bool) {
	session := mustSession(c)
	id, valid := paramID(c, "id")
	if !valid {
		return nil, false
	}

	var task models.AnalysisTask
	if err := s.db.Preload("File").Preload("Regions").Where("id = ?", id).First(&task).Error; err != nil {
		fail(c, "task not found")
		return nil, false
	}
	if task.UserID != session.UserID && !session.IsAdmin {
		fail(c, "no permission to access this task")
		return nil, false
	}
	return &task, true
}

func (s *Server) getTask(c *gin.Context) {
	task, found := s.ownedTask(c)
	if !found {
		return
	}
	ok(c, taskDetail(task))
}

func (s *Server) taskStatus(c *gin.Context) {
	task, found := s.ownedTask(c)
	if !found {
		return
	}

	if err := s.advance(task); err != nil {
		s.logger.Error().Err(err).Int64("task_id", task.ID).Msg("Failed to advance task")
		fail(c, "failed to get task status: "+err.Error())
		return
	}

	ok(c, TaskStatusDetail{
		TaskID:       task.ID,
		Status:       task.Status,
		Progress:     task.Progress,
		StartedAt:    formatTimePtr(task.StartedAt),
		CompletedAt:  formatTimePtr(task.CompletedAt),
		ErrorMessage: task.ErrorMessage,
	})
}

func (s *Server) taskResult(c *gin.Context) {
	task, found := s.ownedTask(c)
	if !found {
		return
	}
	if task.Status != models.TaskCompleted {
		fail(c, "failed to get task result: task has not completed")
		return
	}

	result := TaskResultDetail{
		TaskID:        task.ID,
		Status:        task.Status,
		CreatedAt:     formatTime(task.CreatedAt),
		CompletedAt:   formatTimePtr(task.CompletedAt),
		Duration:      "-",
		GenomeLength:  task.GenomeLength,
		ProphageCount: task.ProphageCount,
		Prophages:     make([]ProphageSummary, 0, len(task.Regions)),
	}
	if task.File != nil {
		result.FileName = task.File.OriginalFilename
	}
	if task.StartedAt != nil && task.CompletedAt != nil {
		secs := int(task.CompletedAt.Sub(*task.StartedAt).Seconds())
		result.Duration = fmt.Sprintf("%dm%ds", secs/60, secs%60)
	}
	for _, r := range task.Regions {
		result.Prophages = append(result.Prophages, ProphageSummary{
			Name:       fmt.Sprintf("Prophage_%d", r.RegionIndex),
			Start:      r.StartPos,
			End:        r.EndPos,
			Confidence: int(r.Confidence * 100),
			Type:       r.Completeness,
		})
	}

	ok(c, result)
}

func (s *Server) cancelTask(c *gin.Context) {
	task, found := s.ownedTask(c)
	if !found {
		return
	}
	if task.Done() {
		fail(c, fmt.Sprintf("failed to cancel task: task is already %s", strings.ToLower(task.Status)))
		return
	}

	now := s.now()
	if err := s.db.Model(task).Updates(map[string]any{
		"status":       models.TaskCancelled,
		"completed_at": now,
	}).Error; err != nil {
		fail(c, "failed to cancel task: "+err.Error())
		return
	}
	okMessage(c, "task cancelled", nil)
}

func (s *Server) deleteTask(c *gin.Context) {
	task, found := s.ownedTask(c)
	if !found {
		return
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("task_id = ?", task.ID).Delete(&models.ProphageRegion{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.AnalysisTask{}, task.ID).Error
	})
	if err != nil {
		fail(c, "failed to delete task: "+err.Error())
		return
	}
	ok(c, nil)
}

var completeness = []string{"complete", "high quality", "medium quality"}

// advance moves a task one step through its life cycle. Each status poll
// progresses the simulated analysis: pending, running, completed.
func (s *Server) advance(task *models.AnalysisTask) error {
	now := s.now()

	switch task.Status {
	case models.TaskPending:
		task.Status = models.TaskRunning
		task.Progress = 50
		task.StartedAt = &now
		return s.db.Model(task).Updates(map[string]any{
			"status":     task.Status,
			"progress":   task.Progress,
			"started_at": now,
		}).Error

	case models.TaskRunning:
		var length int64
		if task.File != nil {
			length = task.File.SequenceLength
		}
		regions := simulateRegions(task.ID, length)

		task.Status = models.TaskCompleted
		task.Progress = 100
		task.CompletedAt = &now
		task.GenomeLength = length
		task.ProphageCount = len(regions)
		task.Regions = regions

		return s.db.Transaction(func(tx *gorm.DB) error {
			if len(regions) > 0 {
				if err := tx.Create(&regions).Error; err != nil {
					return err
				}
			}
			return tx.Model(task).Omit("Regions", "File").Updates(map[string]any{
				"status":         task.Status,
				"progress":       task.Progress,
				"completed_at":   now,
				"genome_length":  task.GenomeLength,
				"prophage_count": task.ProphageCount,
			}).Error
		})
	}
	return nil
}

// simulateRegions derives a deterministic set of regions from the genome
// length; genomes shorter than 100 residues yield none
func simulateRegions(taskID, length int64) []models.ProphageRegion {
	if length < 100 {
		return nil
	}

	n := 1 + int(length%3)
	span := length / int64(n+2)
	regions := make([]models.ProphageRegion, 0, n)
	for i := 0; i < n; i++ {
		start := span*int64(i+1) + 1
		regions = append(regions, models.ProphageRegion{
			TaskID:       taskID,
			RegionIndex:  i + 1,
			StartPos:     start,
			EndPos:       start + span/2,
			Confidence:   0.95 - 0.1*float64(i),
			Completeness: completeness[i%len(completeness)],
			GeneCount:    10 + 5*i,
		})
	}
	return regions
}
