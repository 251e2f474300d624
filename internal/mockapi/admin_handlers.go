package mockapi

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/argscan/argscan/internal/models"
)

// UserDetail is an account as seen by an administrator
type UserDetail struct {
	UserID      int64  `json:"userId"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	Role        string `json:"role"`
	Status      string `json:"status"`
	CreatedAt   string `json:"createdAt"`
	LastLoginAt string `json:"lastLoginAt,omitempty"`
	FileCount   int64  `json:"fileCount"`
	TaskCount   int64  `json:"taskCount"`
}

func (s *Server) userDetails(users []models.User) []UserDetail {
	out := make([]UserDetail, 0, len(users))
	for _, u := range users {
		d := UserDetail{
			UserID:      u.ID,
			Username:    u.Username,
			Email:       u.Email,
			Role:        u.Role,
			Status:      u.Status,
			CreatedAt:   formatTime(u.CreatedAt),
			LastLoginAt: formatTimePtr(u.LastLoginAt),
		}
		s.db.Model(&models.GenomeFile{}).Where("user_id = ?", u.ID).Count(&d.FileCount)
		s.db.Model(&models.AnalysisTask{}).Where("user_id = ?", u.ID).Count(&d.TaskCount)
		out = append(out, d)
	}
	return out
}

func (s *Server) listUsers(c *gin.Context) {
	var users []models.User
	if err := s.db.Order("id").Find(&users).Error; err != nil {
		fail(c, err.Error())
		return
	}
	ok(c, s.userDetails(users))
}

// searchUsers matches a username fragment or an exact user id
func (s *Server) searchUsers(c *gin.Context) {
	keyword := c.Query("keyword")
	if keyword == "" {
		fail(c, "keyword is required")
		return
	}

	query := s.db.Where("username LIKE ?", "%"+keyword+"%")
	if id, err := strconv.ParseInt(keyword, 10, 64); err == nil {
		query = query.Or("id = ?", id)
	}

	var users []models.User
	if err := query.Order("id").Find(&users).Error; err != nil {
		fail(c, err.Error())
		return
	}
	ok(c, s.userDetails(users))
}

func (s *Server) deleteUser(c *gin.Context) {
	session := mustSession(c)
	id, valid := paramID(c, "id")
	if !valid {
		return
	}
	if id == session.UserID {
		fail(c, "cannot delete your own account")
		return
	}

	var user models.User
	if err := models.FindByID(s.db, id, &user); err != nil {
		fail(c, "user not found")
		return
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		var taskIDs []int64
		if err := tx.Model(&models.AnalysisTask{}).Where("user_id = ?", id).Pluck("id", &taskIDs).Error; err != nil {
			return err
		}
		if len(taskIDs) > 0 {
			if err := tx.Where("task_id IN ?", taskIDs).Delete(&models.ProphageRegion{}).Error; err != nil {
				return err
			}
		}
		for _, model := range []any{&models.AnalysisTask{}, &models.GenomeFile{}, &models.LoginLog{}} {
			if err := tx.Where("user_id = ?", id).Delete(model).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&user).Error
	})
	if err != nil {
		s.logger.Error().Err(err).Int64("user_id", id).Msg("Failed to delete user")
		fail(c, err.Error())
		return
	}

	s.logger.Info().Int64("user_id", id).Msg("User deleted")
	okMessage(c, "user and all their data deleted", "user and all their data deleted")
}

func (s *Server) banUser(c *gin.Context) {
	session := mustSession(c)
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	ban, err := strconv.ParseBool(c.Query("ban"))
	if err != nil {
		fail(c, "ban must be true or false")
		return
	}
	if id == session.UserID {
		fail(c, "cannot ban your own account")
		return
	}

	status := models.StatusActive
	if ban {
		status = models.StatusBanned
	}

	result := s.db.Model(&models.User{}).Where("id = ?", id).Update("status", status)
	if result.Error != nil {
		fail(c, result.Error.Error())
		return
	}
	if result.RowsAffected == 0 {
		fail(c, "user not found")
		return
	}

	s.logger.Info().Int64("user_id", id).Bool("ban", ban).Msg("User status changed")
	ok(c, nil)
}

func (s *Server) fileList(c *gin.Context, query *gorm.DB) {
	var files []models.GenomeFile
	if err := query.Preload("User").Order("genome_files.id DESC").Find(&files).Error; err != nil {
		fail(c, err.Error())
		return
	}

	out := make([]GenomeFileDetail, 0, len(files))
	for i := range files {
		out = append(out, fileDetail(&files[i]))
	}
	ok(c, out)
}

func (s *Server) listAllFiles(c *gin.Context) {
	s.fileList(c, s.db.Model(&models.GenomeFile{}))
}

// searchFiles filters by owner (username or id) and by filename
func (s *Server) searchFiles(c *gin.Context) {
	query := s.db.Model(&models.GenomeFile{}).Joins("JOIN users ON users.id = genome_files.user_id")

	if userKeyword := c.Query("userKeyword"); userKeyword != "" {
		if id, err := strconv.ParseInt(userKeyword, 10, 64); err == nil {
			query = query.Where("(users.username LIKE ? OR users.id = ?)", "%"+userKeyword+"%", id)
		} else {
			query = query.Where("users.username LIKE ?", "%"+userKeyword+"%")
		}
	}
	if fileKeyword := c.Query("fileKeyword"); fileKeyword != "" {
		query = query.Where("genome_files.original_filename LIKE ?", "%"+fileKeyword+"%")
	}

	s.fileList(c, query)
}

func (s *Server) adminDeleteFile(c *gin.Context) {
	id, valid := paramID(c, "id")
	if !valid {
		return
	}

	var file models.GenomeFile
	if err := models.FindByID(s.db, id, &file); err != nil {
		fail(c, "file not found")
		return
	}

	if err := s.removeFile(id); err != nil {
		fail(c, err.Error())
		return
	}
	okMessage(c, "file and all its data deleted", "file and all its data deleted")
}

func (s *Server) systemStatistics(c *gin.Context) {
	var stats struct {
		TotalUsers  int64 `json:"totalUsers"`
		TotalFiles  int64 `json:"totalFiles"`
		TotalTasks  int64 `json:"totalTasks"`
		TotalLogins int64 `json:"totalLogins"`
	}
	s.db.Model(&models.User{}).Count(&stats.TotalUsers)
	s.db.Model(&models.GenomeFile{}).Count(&stats.TotalFiles)
	s.db.Model(&models.AnalysisTask{}).Count(&stats.TotalTasks)
	s.db.Model(&models.LoginLog{}).Count(&stats.TotalLogins)

	ok(c, stats)
}
