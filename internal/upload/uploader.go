// internal/upload/uploader.go
package upload

import (
	"bytes"
	"context"
	"fmt"
	"path"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"

	commonaws "referralbridge/internal/common/aws"
	"referralbridge/internal/common/logger"
	"referralbridge/internal/models"
)

// Uploader stores a resume and returns a download URL. Used post-verification
// only; a failure is non-fatal for the submission.
type Uploader interface {
	Upload(ctx context.Context, resume *models.ResumeHandle) (string, error)
}

// S3Uploader writes resumes to an S3 bucket under resumes/<uuid>-<filename>.
type S3Uploader struct {
	client *commonaws.S3Client
	bucket string
	logger logger.Logger
}

func NewS3Uploader(client *commonaws.S3Client, bucket string, log logger.Logger) *S3Uploader {
	return &S3Uploader{
		client: client,
		bucket: bucket,
		logger: log.WithFields(map[string]interface{}{"component": "resume-upload"}),
	}
}

func (u *S3Uploader) Upload(ctx context.Context, resume *models.ResumeHandle) (string, error) {
	if resume == nil || len(resume.Content) == 0 {
		return "", fmt.Errorf("no resume content to upload")
	}

	key := fmt.Sprintf("resumes/%s-%s", uuid.New().String(), sanitizeFilename(resume.Filename))

	_, err := u.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(u.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(resume.Content),
		ContentType: aws.String(resume.MediaType),
	})
	if err != nil {
		u.logger.Error("resume upload failed", map[string]interface{}{
			"key":   key,
			"error": err,
		})
		return "", err
	}

	url := fmt.Sprintf("https://%s.s3.%s.amazonaws.com/%s", u.bucket, u.client.Region(), key)

	u.logger.Info("resume uploaded", map[string]interface{}{
		"key": key,
	})
	return url, nil
}

func sanitizeFilename(name string) string {
	name = path.Base(name)
	name = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if name == "" || name == "." {
		return "resume"
	}
	return name
}
