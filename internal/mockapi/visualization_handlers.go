package mockapi

import (
	"fmt"

	"github.com/gin-gonic/gin"

	"github.com/argscan/argscan/internal/models"
)

// completedTask loads one of the caller's tasks and requires it to be done
func (s *Server) completedTask(c *gin.Context) (*models.AnalysisTask, bool) {
	task, found := s.ownedTask(c)
	if !found {
		return nil, false
	}
	if task.Status != models.TaskCompleted {
		fail(c, "failed to get visualization data: analysis has not completed")
		return nil, false
	}
	return task, true
}

func regionView(r models.ProphageRegion) gin.H {
	return gin.H{
		"regionId":     r.ID,
		"index":        r.RegionIndex,
		"start":        r.StartPos,
		"end":          r.EndPos,
		"length":       r.EndPos - r.StartPos + 1,
		"confidence":   r.Confidence,
		"completeness": r.Completeness,
		"geneCount":    r.GeneCount,
	}
}

// argView presents a region as a resistance gene hit
func argView(r models.ProphageRegion) gin.H {
	classes := []string{"beta-lactam", "tetracycline", "aminoglycoside"}
	return gin.H{
		"index":     r.RegionIndex,
		"id":        fmt.Sprintf("contig_%d", r.RegionIndex),
		"isArg":     true,
		"predProb":  r.Confidence,
		"argClass":  classes[(r.RegionIndex-1)%len(classes)],
		"classProb": r.Confidence - 0.05,
		"prob":      r.Confidence * (r.Confidence - 0.05),
	}
}

func (s *Server) genomeData(task *models.AnalysisTask) gin.H {
	info := gin.H{
		"taskId":       task.ID,
		"taskName":     task.TaskName,
		"analysisType": task.AnalysisType,
		"status":       task.Status,
	}
	data := gin.H{"genomeInfo": info}

	if task.IsArg() {
		results := make([]gin.H, 0, len(task.Regions))
		for _, r := range task.Regions {
			results = append(results, argView(r))
		}
		info["argCount"] = task.ProphageCount
		data["argResults"] = results
		return data
	}

	regions := make([]gin.H, 0, len(task.Regions))
	for _, r := range task.Regions {
		regions = append(regions, regionView(r))
	}
	info["genomeLength"] = task.GenomeLength
	info["prophageCount"] = task.ProphageCount
	data["prophageRegions"] = regions
	return data
}

func (s *Server) statisticsData(task *models.AnalysisTask) gin.H {
	stats := gin.H{"prophageCount": len(task.Regions)}
	if len(task.Regions) == 0 {
		return stats
	}

	var (
		lengths    []int64
		scores     []float64
		geneCounts []int
		total      int64
		scoreSum   float64
		genes      int
	)
	for _, r := range task.Regions {
		l := r.EndPos - r.StartPos + 1
		lengths = append(lengths, l)
		scores = append(scores, r.Confidence)
		geneCounts = append(geneCounts, r.GeneCount)
		total += l
		scoreSum += r.Confidence
		genes += r.GeneCount
	}
	n := len(task.Regions)

	stats["prophageLengths"] = lengths
	stats["avgProphageLength"] = total / int64(n)
	stats["totalProphageLength"] = total
	stats["prophageScores"] = scores
	stats["avgProphageScore"] = scoreSum / float64(n)
	stats["geneCountDistribution"] = geneCounts
	stats["totalGenes"] = genes
	return stats
}

func (s *Server) genomeVisualization(c *gin.Context) {
	task, found := s.completedTask(c)
	if !found {
		return
	}
	ok(c, s.genomeData(task))
}

func (s *Server) prophageDetail(c *gin.Context) {
	task, found := s.completedTask(c)
	if !found {
		return
	}
	regionID, valid := paramID(c, "region")
	if !valid {
		return
	}

	for _, r := range task.Regions {
		if r.ID != regionID && int64(r.RegionIndex) != regionID {
			continue
		}

		step := (r.EndPos - r.StartPos + 1) / int64(max(r.GeneCount, 1))
		genes := make([]gin.H, 0, r.GeneCount)
		for i := 0; i < r.GeneCount; i++ {
			start := r.StartPos + step*int64(i)
			strand := "+"
			if i%2 == 1 {
				strand = "-"
			}
			genes = append(genes, gin.H{
				"geneId":  fmt.Sprintf("gene_%d_%d", r.RegionIndex, i+1),
				"start":   start,
				"end":     start + step - 1,
				"strand":  strand,
				"product": "hypothetical protein",
			})
		}

		detail := regionView(r)
		detail["genes"] = genes
		ok(c, detail)
		return
	}

	fail(c, "failed to get details: region not found")
}

func (s *Server) taskStatistics(c *gin.Context) {
	task, found := s.completedTask(c)
	if !found {
		return
	}
	ok(c, s.statisticsData(task))
}

func (s *Server) exportVisualization(c *gin.Context) {
	task, found := s.completedTask(c)
	if !found {
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="task_%d_visualization.json"`, task.ID))
	ok(c, gin.H{
		"taskInfo": gin.H{
			"taskId":      task.ID,
			"taskName":    task.TaskName,
			"status":      task.Status,
			"createdAt":   formatTime(task.CreatedAt),
			"completedAt": formatTimePtr(task.CompletedAt),
		},
		"genome":     s.genomeData(task),
		"statistics": s.statisticsData(task),
	})
}
