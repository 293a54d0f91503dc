package validator

import (
	"fmt"
	"path/filepath"
	"sort"
	"strings"

	"github.com/futig/docchat/internal/config"
	"github.com/futig/docchat/internal/entity"
)

// AllowedExtensions lists document types the RAG service can ingest.
var AllowedExtensions = map[string]bool{
	".pdf":  true,
	".txt":  true,
	".md":   true,
	".doc":  true,
	".docx": true,
	".pptx": true,
	".xlsx": true,
	".csv":  true,
	".html": true,
	".json": true,
	".rtf":  true,
	".odt":  true,
	".png":  true,
	".jpg":  true,
	".jpeg": true,
}

// Validator validates user input before it reaches the RAG service
type Validator struct {
	cfg config.FileUploadConfig
}

func NewFileValidator(cfg config.FileUploadConfig) *Validator {
	return &Validator{cfg: cfg}
}

// ValidateUpload validates a batch of documents
func (v *Validator) ValidateUpload(files []entity.FileData) error {
	if len(files) == 0 {
		return fmt.Errorf("%w: files", entity.ErrMissingField)
	}

	if len(files) > v.cfg.MaxFileCount {
		return fmt.Errorf("%w: maximum %d files allowed, got %d", entity.ErrTooManyFiles, v.cfg.MaxFileCount, len(files))
	}

	var totalSize int64
	for _, f := range files {
		if err := v.ValidateFile(f); err != nil {
			return err
		}
		totalSize += int64(len(f.Content))
	}

	if totalSize > v.cfg.MaxTotalSize {
		return fmt.Errorf("%w: total size is %d bytes (max %d)", entity.ErrTotalSizeTooLarge, totalSize, v.cfg.MaxTotalSize)
	}

	return nil
}

// ValidateFile validates a single document
func (v *Validator) ValidateFile(f entity.FileData) error {
	name := strings.TrimSpace(f.Filename)
	if name == "" || name == "." {
		return fmt.Errorf("%w: empty filename", entity.ErrInvalidFile)
	}

	if len(f.Content) == 0 {
		return fmt.Errorf("%w: file '%s' is empty", entity.ErrInvalidFile, f.Filename)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if !AllowedExtensions[ext] {
		return fmt.Errorf("%w: %q (allowed: %s)", entity.ErrInvalidExtension, ext, allowedList())
	}

	size := int64(len(f.Content))
	if size > v.cfg.MaxFileSize {
		return fmt.Errorf("%w: file '%s' is %d bytes (max %d)", entity.ErrFileTooLarge, f.Filename, size, v.cfg.MaxFileSize)
	}

	return nil
}

// ValidateQuestion rejects blank questions
func (v *Validator) ValidateQuestion(question string) error {
	if strings.TrimSpace(question) == "" {
		return entity.ErrEmptyQuestion
	}
	return nil
}

// SanitizeFilename strips any directory part a client may send
func SanitizeFilename(filename string) string {
	filename = strings.ReplaceAll(filename, "\\", "/")
	return filepath.Base(strings.TrimSpace(filename))
}

func allowedList() string {
	exts := make([]string, 0, len(AllowedExtensions))
	for ext := range AllowedExtensions {
		exts = append(exts, strings.TrimPrefix(ext, "."))
	}
	sort.Strings(exts)
	return strings.Join(exts, ", ")
}
