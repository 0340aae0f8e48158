package handlers

import (
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	appConfig "github.com/pintoo555/SyncERP-sub001/internal/config"
	"github.com/pintoo555/SyncERP-sub001/internal/database"
	"github.com/pintoo555/SyncERP-sub001/internal/services"
	apperrors "github.com/pintoo555/SyncERP-sub001/pkg/errors"
	"github.com/pintoo555/SyncERP-sub001/pkg/logger"
	"github.com/pintoo555/SyncERP-sub001/pkg/utils"
)

// Attachment resolution: the upload endpoint stores bytes in R2, hands the
// client an opaque file id plus an unguessable access token, and caches the
// metadata so a later send request only needs the file id.

const maxAttachmentSize = 25 << 20 // 25 MiB

var allowedAttachmentMimes = map[string]bool{
	"image/png":        true,
	"image/jpeg":       true,
	"image/webp":       true,
	"image/gif":        true,
	"application/pdf":  true,
	"text/plain":       true,
	"text/csv":         true,
	"application/zip":  true,
	"application/json": true,
	"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet":   true,
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document": true,
}

// Local fallback for the Redis metadata cache; uploads and sends normally hit
// the same node, so this keeps single-node deployments working when Redis is
// down.
var (
	attachmentMeta   = make(map[string]services.AttachmentRef)
	attachmentMetaMu sync.RWMutex
)

const attachmentMetaTTL = 24 * time.Hour

func getS3Client() (*s3.Client, error) {
	cfg := appConfig.AppConfig
	r2Resolver := aws.EndpointResolverWithOptionsFunc(func(service, region string, options ...interface{}) (aws.Endpoint, error) {
		return aws.Endpoint{
			URL: fmt.Sprintf("https://%s.r2.cloudflarestorage.com", cfg.R2AccountID),
		}, nil
	})

	awsCfg, err := awsconfig.LoadDefaultConfig(context.TODO(),
		awsconfig.WithEndpointResolverWithOptions(r2Resolver),
		awsconfig.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(cfg.R2AccessKeyID, cfg.R2SecretAccessKey, "")),
	)
	if err != nil {
		return nil, err
	}

	return s3.NewFromConfig(awsCfg), nil
}

func validateAttachment(header *multipart.FileHeader) error {
	if header.Size > maxAttachmentSize {
		return fmt.Errorf("attachment exceeds the %d MB limit", maxAttachmentSize>>20)
	}
	mime := header.Header.Get("Content-Type")
	if i := strings.Index(mime, ";"); i >= 0 {
		mime = strings.TrimSpace(mime[:i])
	}
	if !allowedAttachmentMimes[mime] {
		return fmt.Errorf("attachment type %q is not allowed", mime)
	}
	return nil
}

func cacheAttachmentRef(ref services.AttachmentRef) {
	attachmentMetaMu.Lock()
	attachmentMeta[ref.FileID] = ref
	attachmentMetaMu.Unlock()

	if err := database.CacheSet("chat:attachment:"+ref.FileID, ref, attachmentMetaTTL); err != nil {
		logger.Debug().Err(err).Str("file_id", ref.FileID).Msg("attachment metadata cache write failed")
	}
}

// resolveAttachment turns a file id from a send request back into the full
// reference recorded at upload time.
func resolveAttachment(fileID string) (*services.AttachmentRef, error) {
	attachmentMetaMu.RLock()
	ref, ok := attachmentMeta[fileID]
	attachmentMetaMu.RUnlock()
	if ok {
		return &ref, nil
	}

	var cached services.AttachmentRef
	if err := database.CacheGet("chat:attachment:"+fileID, &cached); err == nil && cached.FileID == fileID {
		return &cached, nil
	}

	return nil, apperrors.NotFound("Unknown attachment; upload it first")
}

// UploadChatAttachment accepts a multipart file, validates it, stores it in
// the chat bucket and returns the reference the client passes to the send
// endpoint.
func UploadChatAttachment(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No valid file field found", "kind": apperrors.KindValidation})
		return
	}
	defer file.Close()

	if err := validateAttachment(header); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error(), "kind": apperrors.KindValidation})
		return
	}

	fileID := utils.GenerateID()
	token := utils.GenerateAccessToken()
	ext := filepath.Ext(header.Filename)
	key := fmt.Sprintf("syncerp/chat/%s%s", fileID, ext)

	client, err := getS3Client()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to init storage client", "kind": apperrors.KindInternal})
		return
	}

	cfg := appConfig.AppConfig
	_, err = client.PutObject(context.TODO(), &s3.PutObjectInput{
		Bucket:      aws.String(cfg.R2BucketName),
		Key:         aws.String(key),
		Body:        file,
		ContentType: aws.String(header.Header.Get("Content-Type")),
		Metadata:    map[string]string{"access-token": token},
	})
	if err != nil {
		logger.Error().Err(err).Str("key", key).Msg("attachment upload failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Upload failed", "kind": apperrors.KindInternal})
		return
	}

	ref := services.AttachmentRef{
		FileID: fileID,
		Name:   utils.SanitizeFilename(header.Filename),
		Mime:   header.Header.Get("Content-Type"),
		Token:  token,
	}
	cacheAttachmentRef(ref)

	c.JSON(http.StatusOK, gin.H{
		"fileId":      ref.FileID,
		"name":        ref.Name,
		"mimetype":    ref.Mime,
		"size":        header.Size,
		"accessToken": ref.Token,
	})
}
