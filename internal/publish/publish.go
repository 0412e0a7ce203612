package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"fuzzrunner/config"
	"fuzzrunner/internal/report"
	"fuzzrunner/internal/types"
	"fuzzrunner/pkg/database"
	"fuzzrunner/pkg/mq"

	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	CampaignKeyTmpl = "fuzzrunner:campaign:%s" // hash: target name --> ResultMessage JSON
	LatestKey       = "fuzzrunner:latest"      // id of the most recent campaign
	CampaignTTL     = 7 * 24 * time.Hour
)

// Publisher hands a finished campaign to every configured sink. Sinks are
// optional and independent; a failing sink is logged and never affects the
// verdict.
type Publisher struct {
	logger      *zap.Logger
	db          *gorm.DB
	redisClient *redis.Client
	rabbitMQ    mq.RabbitMQ
	queue       string
	reportPath  string
}

type PublisherParams struct {
	fx.In

	Logger      *zap.Logger
	AppConfig   *config.AppConfig
	DB          *gorm.DB      `optional:"true"`
	RedisClient *redis.Client `optional:"true"`
	RabbitMQ    mq.RabbitMQ   `optional:"true"`
}

func NewPublisher(params PublisherParams) *Publisher {
	return &Publisher{
		params.Logger,
		params.DB,
		params.RedisClient,
		params.RabbitMQ,
		params.AppConfig.ResultsQueue,
		params.AppConfig.ReportPath,
	}
}

// Publish returns the number of sinks that failed.
func (p *Publisher) Publish(ctx context.Context, summary report.Summary) int {
	message := NewCampaignMessage(summary)
	failed := 0

	sinks := []struct {
		name    string
		enabled bool
		publish func() error
	}{
		{"yaml", p.reportPath != "", func() error { return report.WriteYAML(p.reportPath, summary) }},
		{"database", p.db != nil, func() error { return p.storeRuns(ctx, message) }},
		{"redis", p.redisClient != nil, func() error { return p.cacheCampaign(ctx, message) }},
		{"rabbitmq", p.rabbitMQ != nil, func() error { return p.sendCampaign(ctx, message) }},
	}
	for _, sink := range sinks {
		if !sink.enabled {
			continue
		}
		if err := sink.publish(); err != nil {
			p.logger.Error("failed to publish campaign results", zap.String("sink", sink.name), zap.Error(err))
			failed++
			continue
		}
		p.logger.Debug("campaign results published", zap.String("sink", sink.name))
	}
	return failed
}

func (p *Publisher) storeRuns(ctx context.Context, message types.CampaignMessage) error {
	runs := make([]*database.FuzzRun, 0, len(message.Results))
	for _, result := range message.Results {
		findings := make(database.FindingList, 0, len(result.Findings))
		for _, f := range result.Findings {
			findings = append(findings, database.Finding{Pattern: f.Pattern, Context: f.Context})
		}
		runs = append(runs, &database.FuzzRun{
			CampaignID:    message.CampaignID,
			Target:        result.Name,
			Passed:        result.Passed,
			ExitCode:      result.ExitCode,
			DurationSec:   result.DurationSec,
			RunsCompleted: result.RunsCompleted,
			TimedOut:      result.TimedOut,
			Findings:      findings,
		})
	}
	return database.AddFuzzRuns(ctx, p.db, runs)
}

func (p *Publisher) cacheCampaign(ctx context.Context, message types.CampaignMessage) error {
	key := fmt.Sprintf(CampaignKeyTmpl, message.CampaignID)
	fields := make(map[string]any, len(message.Results)+1)
	for _, result := range message.Results {
		data, err := json.Marshal(result)
		if err != nil {
			return fmt.Errorf("failed to marshal result of %s: %w", result.Name, err)
		}
		fields[result.Name] = string(data)
	}
	fields["passed"] = message.Passed

	_, err := p.redisClient.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, CampaignTTL)
		pipe.Set(ctx, LatestKey, message.CampaignID, CampaignTTL)
		return nil
	})
	return err
}

func (p *Publisher) sendCampaign(ctx context.Context, message types.CampaignMessage) error {
	body, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal campaign message: %w", err)
	}
	return p.rabbitMQ.Publish(ctx, p.queue, body)
}

// NewCampaignMessage converts a summary into its wire form.
func NewCampaignMessage(summary report.Summary) types.CampaignMessage {
	message := types.CampaignMessage{
		CampaignID:    summary.CampaignID,
		Passed:        summary.Passed,
		TotalRuns:     summary.TotalRuns,
		TotalFindings: summary.TotalFindings,
		DurationSec:   summary.DurationSec,
		Results:       make([]types.ResultMessage, 0, len(summary.Targets)),
	}
	for _, target := range summary.Targets {
		message.Results = append(message.Results, types.ResultMessage{
			CampaignID:    summary.CampaignID,
			Name:          target.Name,
			Passed:        target.Passed,
			ExitCode:      target.ExitCode,
			DurationSec:   target.DurationSec,
			RunsCompleted: target.RunsCompleted,
			TimedOut:      target.TimedOut,
			Findings:      target.Findings,
			Artifacts:     target.Artifacts,
		})
	}
	return message
}
