package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/google/uuid"
)

type putObjectAPI interface {
	PutObject(ctx context.Context, in *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// S3Settings addresses an S3-compatible bucket (AWS or MinIO).
type S3Settings struct {
	User         string
	Password     string
	Bucket       string
	Region       string
	BaseEndpoint string
}

// S3OutboxSender writes each rendered message as a JSON object under
// outbox/<kind>/<yyyy>/<mm>/<dd>/<id>.json for the mail relay to pick up.
type S3OutboxSender struct {
	client putObjectAPI
	bucket string
	now    func() time.Time
}

func NewS3OutboxSender(client putObjectAPI, bucket string) *S3OutboxSender {
	return &S3OutboxSender{client: client, bucket: bucket, now: time.Now}
}

// NewS3Client builds an S3 client with static credentials and a custom
// endpoint, using path-style addressing for MinIO.
func NewS3Client(ctx context.Context, st S3Settings) (*s3.Client, error) {
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithRegion(st.Region),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider(st.User, st.Password, "")),
	)
	if err != nil {
		return nil, fmt.Errorf("aws config: %w", err)
	}

	return s3.NewFromConfig(cfg, func(o *s3.Options) {
		if st.BaseEndpoint != "" {
			o.BaseEndpoint = aws.String(st.BaseEndpoint)
		}
		o.UsePathStyle = true
	}), nil
}

func (s *S3OutboxSender) Send(ctx context.Context, kind Kind, recipient string, payload Payload) error {
	subject, body, err := Render(kind, payload)
	if err != nil {
		return err
	}

	msg := Message{
		ID:        uuid.NewString(),
		Kind:      kind,
		Recipient: recipient,
		Subject:   subject,
		HTMLBody:  body,
		CreatedAt: s.now().UTC(),
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	key := fmt.Sprintf("outbox/%s/%s/%s.json", kind, msg.CreatedAt.Format("2006/01/02"), msg.ID)
	_, err = s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(s.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(data),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return fmt.Errorf("s3 put %s: %w", key, err)
	}
	return nil
}
