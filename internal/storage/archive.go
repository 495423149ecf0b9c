package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type Config struct {
	Endpoint     string
	Region       string
	AccessKey    string
	SecretKey    string
	Bucket       string
	UsePathStyle bool
	Prefix       string
}

// AuditRecord is one generation attempt. It never carries image data.
type AuditRecord struct {
	ID           string    `json:"id"`
	UserID       string    `json:"user_id"`
	Model        string    `json:"model"`
	Provider     string    `json:"provider"`
	Size         string    `json:"size,omitempty"`
	PromptLength int       `json:"prompt_length"`
	Cost         int       `json:"cost"`
	Outcome      string    `json:"outcome"`
	ErrorCode    string    `json:"error_code,omitempty"`
	DurationMS   int64     `json:"duration_ms"`
	CreatedAt    time.Time `json:"created_at"`
}

// Archive writes audit records to S3 as JSON Lines objects. A zero Archive
// (no bucket configured) drops records.
type Archive struct {
	cfg    Config
	client *s3.Client
	now    func() time.Time
}

func NewArchive(cfg Config) (*Archive, error) {
	if cfg.Bucket == "" {
		return &Archive{}, nil
	}
	if cfg.Region == "" {
		return nil, fmt.Errorf("s3 region is required")
	}
	if cfg.AccessKey == "" || cfg.SecretKey == "" {
		return nil, fmt.Errorf("s3 credentials are required")
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "generations"
	}

	options := s3.Options{
		Region:       cfg.Region,
		Credentials:  credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, ""),
		UsePathStyle: cfg.UsePathStyle,
	}
	if cfg.Endpoint != "" {
		options.BaseEndpoint = aws.String(cfg.Endpoint)
	}

	return &Archive{
		cfg:    cfg,
		client: s3.New(options),
		now:    time.Now,
	}, nil
}

func (a *Archive) Enabled() bool {
	return a != nil && a.client != nil
}

func (a *Archive) Record(ctx context.Context, rec AuditRecord) error {
	if !a.Enabled() {
		return nil
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = a.now().UTC()
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(rec); err != nil {
		return fmt.Errorf("encode audit record: %w", err)
	}

	key := a.generateKey(rec.CreatedAt, rec.ID)
	_, err := a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.cfg.Bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(buf.Bytes()),
		ContentType: aws.String("application/x-ndjson"),
	})
	if err != nil {
		return fmt.Errorf("upload audit record: %w", err)
	}
	return nil
}

func (a *Archive) generateKey(at time.Time, id string) string {
	at = at.UTC()
	prefix := strings.Trim(a.cfg.Prefix, "/")
	return path.Join(prefix, fmt.Sprintf("%04d/%02d/%02d", at.Year(), at.Month(), at.Day()), id+".jsonl")
}
