package mockapi

import (
	"bufio"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"github.com/argscan/argscan/internal/models"
)

// Option is a selectable value
type Option struct {
	Value       string `json:"value"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

var fileTypeOptions = []Option{
	{Value: "auto-detect", Label: "Auto-detect", Description: "detect the file type automatically"},
	{Value: "fasta", Label: "FASTA", Description: "genome sequence in FASTA format"},
	{Value: "genbank", Label: "GenBank", Description: "annotated genome in GenBank format"},
	{Value: "gff", Label: "GFF/GFF3", Description: "gene feature format"},
	{Value: "embl", Label: "EMBL", Description: "genome in EMBL format"},
	{Value: "fastq", Label: "FASTQ", Description: "sequences with quality scores"},
}

var referenceOptions = []Option{
	{Value: "unspecified", Label: "Unspecified", Description: "no reference genome"},
	{Value: "hg38", Label: "Human (GRCh38/hg38)", Description: "human reference genome hg38"},
	{Value: "hg19", Label: "Human (GRCh37/hg19)", Description: "human reference genome hg19"},
	{Value: "mm10", Label: "Mouse (GRCm38/mm10)", Description: "mouse reference genome mm10"},
	{Value: "dm6", Label: "D. melanogaster (dm6)", Description: "fruit fly reference genome"},
}

// GenomeFileDetail is a file as returned by the API
type GenomeFileDetail struct {
	FileID           int64  `json:"fileId"`
	UserID           int64  `json:"userId"`
	Username         string `json:"username,omitempty"`
	OriginalFilename string `json:"originalFilename"`
	FileSize         int64  `json:"fileSize"`
	FileType         string `json:"fileType"`
	FileFormat       string `json:"fileFormat"`
	Description      string `json:"description"`
	UploadTime       string `json:"uploadTime"`
	Status           string `json:"status"`
	IsPublic         bool   `json:"isPublic"`
}

func fileDetail(f *models.GenomeFile) GenomeFileDetail {
	d := GenomeFileDetail{
		FileID:           f.ID,
		UserID:           f.UserID,
		OriginalFilename: f.OriginalFilename,
		FileSize:         f.FileSize,
		FileType:         f.FileType,
		FileFormat:       f.FileFormat,
		Description:      f.Description,
		UploadTime:       formatTime(f.CreatedAt),
		Status:           f.Status,
		IsPublic:         f.IsPublic,
	}
	if f.User != nil {
		d.Username = f.User.Username
	}
	return d
}

// detectFormat guesses the format from the extension
func detectFormat(name string) string {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".fa", ".fasta", ".fna", ".fas":
		return "fasta"
	case ".gb", ".gbk", ".genbank":
		return "genbank"
	case ".gff", ".gff3":
		return "gff"
	case ".embl":
		return "embl"
	case ".fq", ".fastq":
		return "fastq"
	default:
		return "unknown"
	}
}

// sequenceLength counts residues in FASTA-like content, skipping header lines
func sequenceLength(r io.Reader) (int64, error) {
	var n int64
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 || line[0] == '>' || line[0] == ';' {
			continue
		}
		for _, b := range line {
			if (b >= 'A' && b <= 'Z') || (b >= 'a' && b <= 'z') {
				n++
			}
		}
	}
	return n, scanner.Err()
}

func (s *Server) uploadFile(c *gin.Context) {
	session := mustSession(c)
	limit := s.config.MaxUploadBytes

	tooLarge := func() {
		c.JSON(http.StatusRequestEntityTooLarge, envelope{
			Code:    http.StatusInternalServerError,
			Message: "file size exceeds the limit of "+formatBytes(limit),
		})
	}

	if c.Request.ContentLength > limit {
		tooLarge()
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	header, err := c.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			tooLarge()
			return
		}
		c.JSON(http.StatusBadRequest, envelope{Code: http.StatusBadRequest, Message: "file is required"})
		return
	}

	src, err := header.Open()
	if err != nil {
		fail(c, "file upload failed: "+err.Error())
		return
	}
	defer src.Close()

	hash := md5.New()
	length, err := sequenceLength(io.TeeReader(src, hash))
	if err != nil {
		fail(c, "file upload failed: "+err.Error())
		return
	}

	isPublic, _ := strconv.ParseBool(c.PostForm("isPublic"))
	file := &models.GenomeFile{
		UserID:           session.UserID,
		OriginalFilename: header.Filename,
		FileSize:         header.Size,
		FileType:         c.DefaultPostForm("fileType", "auto-detect"),
		FileFormat:       detectFormat(header.Filename),
		MD5Hash:          hex.EncodeToString(hash.Sum(nil)),
		Reference:        c.PostForm("reference"),
		Description:      c.PostForm("description"),
		Metadata:         c.PostForm("metadata"),
		SequenceLength:   length,
		Status:           models.FileUploaded,
		IsPublic:         isPublic,
	}
	if err := s.db.Create(file).Error; err != nil {
		s.logger.Error().Err(err).Msg("Failed to store file")
		fail(c, "file upload failed: "+err.Error())
		return
	}

	s.logger.Info().Int64("file_id", file.ID).Int64("size", file.FileSize).Msg("File uploaded")
	okMessage(c, "file uploaded successfully", fileDetail(file))
}

func (s *Server) listFiles(c *gin.Context) {
	session := mustSession(c)

	var files []models.GenomeFile
	if err := s.db.Where("user_id = ? AND status = ?", session.UserID, models.FileUploaded).
		Order("id DESC").Find(&files).Error; err != nil {
		fail(c, "failed to list files: "+err.Error())
		return
	}

	out := make([]GenomeFileDetail, 0, len(files))
	for i := range files {
		out = append(out, fileDetail(&files[i]))
	}
	ok(c, out)
}

// ownedFile loads a file the caller may access: their own, a public one, or
// any file for an admin
func (s *Server) ownedFile(c *gin.Context, write bool) (*models.GenomeFile, bool) {
	session := mustSession(c)
	id, valid := paramID(c, "id")
	if !valid {
		return nil, false
	}

	var file models.GenomeFile
	if err := models.FindByID(s.db, id, &file); err != nil {
		fail(c, "file not found")
		return nil, false
	}

	allowed := file.UserID == session.UserID || session.IsAdmin || (!write && file.IsPublic)
	if !allowed {
		fail(c, "no permission to access this file")
		return nil, false
	}
	return &file, true
}

func (s *Server) getFile(c *gin.Context) {
	file, found := s.ownedFile(c, false)
	if !found {
		return
	}
	ok(c, fileDetail(file))
}

func (s *Server) deleteFile(c *gin.Context) {
	file, found := s.ownedFile(c, true)
	if !found {
		return
	}

	if err := s.removeFile(file.ID); err != nil {
		s.logger.Error().Err(err).Msg("Failed to delete file")
		fail(c, "failed to delete file: "+err.Error())
		return
	}
	ok(c, nil)
}

// removeFile deletes a file and the tasks run over it
func (s *Server) removeFile(id int64) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		var taskIDs []int64
		if err := tx.Model(&models.AnalysisTask{}).Where("file_id = ?", id).Pluck("id", &taskIDs).Error; err != nil {
			return err
		}
		if len(taskIDs) > 0 {
			if err := tx.Where("task_id IN ?", taskIDs).Delete(&models.ProphageRegion{}).Error; err != nil {
				return err
			}
			if err := tx.Where("id IN ?", taskIDs).Delete(&models.AnalysisTask{}).Error; err != nil {
				return err
			}
		}
		return tx.Delete(&models.GenomeFile{}, id).Error
	})
}

func (s *Server) fileTypes(c *gin.Context) {
	ok(c, fileTypeOptions)
}

func (s *Server) references(c *gin.Context) {
	ok(c, referenceOptions)
}
