package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/zayar/retailops_backend/config"
	"github.com/zayar/retailops_backend/models"
	"github.com/zayar/retailops_backend/utils"
	"gorm.io/gorm"
)

const maxUploadSizeBytes int64 = 5 * 1024 * 1024

var photoMimeTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
}

var documentMimeTypes = map[string]bool{
	"application/pdf": true,
	"application/vnd.ms-excel": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet": true,
	"image/jpeg": true,
	"image/png":  true,
}

func mustDB() *gorm.DB {
	return config.GetDB()
}

// applyArtifact records an artifact URL on a receiving record. The object is
// verified in storage first so a document flag is never set against a
// dangling URL.
func applyArtifact(ctx context.Context, recordId int, kind models.ArtifactKind, url *string) (*models.ReceivingRecord, error) {
	if url != nil && strings.TrimSpace(*url) != "" {
		if err := utils.CheckObjectExistsInGCS(ctx, *url); err != nil {
			return nil, models.NewAPIError(models.ErrorKindInvalidInput, models.CodeInvalidInput, "uploaded object not found in storage").WithDetail(err.Error())
		}
	}
	return models.SetUploadArtifact(ctx, recordId, kind, url)
}

type uploadSignRequest struct {
	RecordId int                 `json:"record_id" binding:"required"`
	Kind     models.ArtifactKind `json:"kind" binding:"required"`
	FileName string              `json:"file_name" binding:"required"`
	MimeType string              `json:"mime_type" binding:"required"`
	Size     int64               `json:"size" binding:"required"`
}

// signUploadHandler issues a V4 signed PUT URL so the browser uploads the
// document straight to the bucket. The record is touched only when the caller
// confirms via the artifacts endpoint.
func signUploadHandler(c *gin.Context) {
	logger := config.GetLogger()

	var req uploadSignRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondError(c, err)
		return
	}
	if req.Size > maxUploadSizeBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
		return
	}
	if !documentMimeTypes[req.MimeType] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported file type"})
		return
	}

	record, err := models.GetReceivingRecord(c.Request.Context(), req.RecordId)
	if err != nil {
		respondError(c, err)
		return
	}
	if record.Status == models.ReceivingRecordStatusVoided {
		respondError(c, models.NewAPIError(models.ErrorKindInvariantViolation, models.CodeRecordVoided, "receiving record is voided"))
		return
	}

	ext := strings.ToLower(filepath.Ext(req.FileName))
	objectKey := path.Join("receiving", fmt.Sprint(record.ID), string(req.Kind), utils.GenerateUniqueFilename()+ext)

	signed, err := utils.SignUpload(c.Request.Context(), objectKey, req.MimeType, 15*time.Minute)
	if err != nil {
		logger.WithFields(logrus.Fields{
			"field":      "upload",
			"object_key": objectKey,
		}).Error("failed to sign upload: " + err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to sign upload"})
		return
	}

	logger.WithFields(logrus.Fields{
		"record_id":  record.ID,
		"kind":       req.Kind,
		"mime_type":  req.MimeType,
		"object_key": objectKey,
	}).Info("[upload.sign]")

	c.JSON(http.StatusOK, gin.H{"data": signed})
}

// uploadCompletionPhotoHandler stores the shelving proof photo for a task and
// generates a thumbnail alongside it. Uploading the photo does not complete
// the task; completion is a separate call that checks dependencies.
func uploadCompletionPhotoHandler(c *gin.Context) {
	logger := config.GetLogger()

	taskId, ok := pathId(c)
	if !ok {
		return
	}
	task, err := models.GetReceivingTask(c.Request.Context(), taskId)
	if err != nil {
		respondError(c, err)
		return
	}

	fileHeader, err := c.FormFile("photo")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "photo file is required"})
		return
	}
	if fileHeader.Size > maxUploadSizeBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read photo file"})
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxUploadSizeBytes+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "cannot read photo file"})
		return
	}
	if int64(len(data)) > maxUploadSizeBytes {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file size exceeds 5MB limit"})
		return
	}

	mimeType := http.DetectContentType(data)
	if !photoMimeTypes[mimeType] {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unsupported image type"})
		return
	}

	ext := strings.ToLower(filepath.Ext(fileHeader.Filename))
	if ext == "" {
		ext = ".jpg"
	}
	objectKey := path.Join("receiving", fmt.Sprint(task.ReceivingRecordId), "completion_photos", utils.GenerateUniqueFilename()+ext)

	ctx := c.Request.Context()
	if err := utils.UploadFileToGCS(ctx, objectKey, bytes.NewReader(data)); err != nil {
		logger.WithFields(logrus.Fields{
			"field":      "upload",
			"object_key": objectKey,
		}).Error("failed to upload photo: " + err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to upload photo"})
		return
	}

	thumbnailKey, err := createPhotoThumbnail(ctx, objectKey, data)
	if err != nil {
		// The original upload succeeded; a missing thumbnail is not fatal.
		logger.WithFields(logrus.Fields{
			"field":      "upload",
			"object_key": objectKey,
		}).Warn("failed to generate thumbnail: " + err.Error())
	}

	photoURL := utils.BuildObjectAccessURL(objectKey)
	if err := mustDB().WithContext(ctx).
		Model(&models.ReceivingTask{}).
		Where("id = ?", task.ID).
		Update("completion_photo_url", photoURL).Error; err != nil {
		respondError(c, err)
		return
	}

	response := gin.H{
		"photo_url":  photoURL,
		"object_key": objectKey,
	}
	if thumbnailKey != "" {
		response["thumbnail_url"] = utils.BuildObjectAccessURL(thumbnailKey)
	}
	c.JSON(http.StatusOK, gin.H{"data": response})
}

func createPhotoThumbnail(ctx context.Context, objectKey string, data []byte) (string, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return "", err
	}
	thumbnail := imaging.Resize(img, 200, 0, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, thumbnail, imaging.JPEG); err != nil {
		return "", err
	}

	thumbnailKey := thumbnailObjectKey(objectKey)
	if err := utils.UploadBytesToGCS(ctx, thumbnailKey, buf.Bytes(), "image/jpeg"); err != nil {
		return "", err
	}
	return thumbnailKey, nil
}

func thumbnailObjectKey(objectKey string) string {
	dir := path.Dir(objectKey)
	filename := path.Base(objectKey)
	return path.Join(dir, "thumbnails", filename)
}
