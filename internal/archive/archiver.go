package archive

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/zoek1/web-1/internal/config"
	"github.com/zoek1/web-1/internal/event"
	"github.com/zoek1/web-1/internal/logger"
	"github.com/zoek1/web-1/internal/model"
)

// ObjectPutter S3 写入接口
type ObjectPutter interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// Archiver 将每个悬赏修订的链上快照写入对象存储
type Archiver struct {
	client ObjectPutter
	bucket string
}

// Snapshot 归档内容
type Snapshot struct {
	Id                 int64                  `json:"pk"`
	Network            string                 `json:"network"`
	StandardBountiesId int64                  `json:"standard_bounties_id"`
	GithubURL          string                 `json:"github_url"`
	Status             string                 `json:"status"`
	BountyState        string                 `json:"bounty_state"`
	CurrentBounty      bool                   `json:"current_bounty"`
	RawData            map[string]interface{} `json:"raw_data"`
}

// New 根据配置创建归档器，未启用时返回 nil
func New(ctx context.Context, cfg config.ArchiveConfig) (*Archiver, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	region := cfg.Region
	if region == "" {
		region = "auto"
	}

	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(region)}
	if cfg.AccessKeyID != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, ""),
		))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load archive config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})
	return NewWithClient(client, cfg.Bucket), nil
}

// NewWithClient 使用已有客户端
func NewWithClient(client ObjectPutter, bucket string) *Archiver {
	return &Archiver{client: client, bucket: bucket}
}

// Key 快照对象路径
func Key(b *model.Bounty) string {
	return fmt.Sprintf("snapshots/%s/%d/%d.json", b.Network, b.StandardBountiesId, b.Id)
}

// Put 归档单个修订
func (a *Archiver) Put(ctx context.Context, b *model.Bounty) (string, error) {
	body, err := json.Marshal(Snapshot{
		Id:                 b.Id,
		Network:            b.Network,
		StandardBountiesId: b.StandardBountiesId,
		GithubURL:          b.GithubURL,
		Status:             b.IdxStatus,
		BountyState:        b.BountyState,
		CurrentBounty:      b.CurrentBounty,
		RawData:            b.RawData,
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode snapshot: %w", err)
	}

	key := Key(b)
	_, err = a.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(a.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(body),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to upload snapshot %s: %w", key, err)
	}
	logger.ForBounty(b.Network, b.StandardBountiesId).Debug("archived snapshot %s", key)
	return key, nil
}

func (a *Archiver) Name() string { return "archiver" }

func (a *Archiver) EventTypes() []string {
	return []string{event.TypeBountyRevised}
}

// Handle 只归档链上同步产生的修订
func (a *Archiver) Handle(ctx context.Context, e event.Event) error {
	revised, ok := e.(event.BountyRevised)
	if !ok || revised.Bounty == nil || !revised.Bounty.IsBountiesNetwork() || len(revised.Bounty.RawData) == 0 {
		return nil
	}
	_, err := a.Put(ctx, revised.Bounty)
	return err
}
