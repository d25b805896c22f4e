package main

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"github.com/nats-io/nats.go"

	"github.com/arbiter-oj/arbiter/api"
	"github.com/arbiter-oj/arbiter/internal/environment"
	"github.com/arbiter-oj/arbiter/internal/report"
	"github.com/arbiter-oj/arbiter/internal/report/natsrep"
	"github.com/arbiter-oj/arbiter/internal/report/sqsrep"
	"github.com/arbiter-oj/arbiter/internal/scheduler"
)

type backendFunc func(subm api.Submission) report.Reporter

func connectBackends(ctx context.Context, env *environment.EnvConfig, logger *slog.Logger) ([]backendFunc, error) {
	var backends []backendFunc

	if env.NatsURL != "" {
		nc, err := nats.Connect(env.NatsURL,
			nats.MaxReconnects(-1),
			nats.ReconnectWait(2*time.Second))
		if err != nil {
			return nil, err
		}
		logger.Info("publishing results to nats", "url", env.NatsURL, "subject", env.NatsSubject)
		backends = append(backends, func(subm api.Submission) report.Reporter {
			return natsrep.New(nc, subm.ID, env.NatsSubject)
		})
	}

	if env.RespSqsURL != "" {
		cfg, err := awscfg.LoadDefaultConfig(ctx)
		if err != nil {
			return nil, err
		}
		client := sqs.NewFromConfig(cfg)
		logger.Info("publishing results to sqs", "queue", env.RespSqsURL)
		backends = append(backends, func(subm api.Submission) report.Reporter {
			return sqsrep.New(client, subm.ID, env.RespSqsURL)
		})
	}

	return backends, nil
}

// serveSqs consumes submission messages until ctx is cancelled. A message is
// deleted once its submission is admitted; a refused admission due to load
// leaves the message for redelivery.
func serveSqs(ctx context.Context, env *environment.EnvConfig, sched *scheduler.Scheduler, logger *slog.Logger) error {
	cfg, err := awscfg.LoadDefaultConfig(ctx)
	if err != nil {
		return err
	}
	client := sqs.NewFromConfig(cfg)
	logger.Info("consuming submissions", "queue", env.SubmSqsURL)

	for {
		if ctx.Err() != nil {
			return nil
		}
		output, err := client.ReceiveMessage(ctx, &sqs.ReceiveMessageInput{
			QueueUrl:            aws.String(env.SubmSqsURL),
			MaxNumberOfMessages: 10,
			WaitTimeSeconds:     5,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			logger.Error("failed to receive messages", "error", err)
			time.Sleep(time.Second)
			continue
		}

		for _, message := range output.Messages {
			if handleMessage(ctx, message, sched, logger) {
				_, err := client.DeleteMessage(ctx, &sqs.DeleteMessageInput{
					QueueUrl:      aws.String(env.SubmSqsURL),
					ReceiptHandle: message.ReceiptHandle,
				})
				if err != nil {
					logger.Error("failed to delete message", "error", err)
				}
			}
		}
	}
}

// handleMessage reports whether the message should be deleted from the queue.
func handleMessage(_ context.Context, message types.Message, sched *scheduler.Scheduler, logger *slog.Logger) bool {
	var subm api.Submission
	if err := json.Unmarshal([]byte(*message.Body), &subm); err != nil {
		// A malformed body never becomes judgeable; keeping it would
		// only make it redeliver forever.
		logger.Error("failed to unmarshal submission", "error", err)
		return true
	}
	if subm.ID == "" {
		subm.ID = uuid.New().String()
	}

	_, err := sched.Submit(subm)
	switch {
	case err == nil:
		logger.Info("admitted submission", "subm", subm.ID, "lang", subm.LangID)
		return true
	case errors.Is(err, scheduler.ErrOverloaded), errors.Is(err, scheduler.ErrUserLimit):
		// Backpressure refusals are temporary; the message redelivers
		// once capacity frees up.
		logger.Warn("no capacity, leaving message for redelivery", "subm", subm.ID, "error", err)
		return false
	case errors.Is(err, scheduler.ErrClosed):
		return false
	default:
		logger.Warn("refused submission", "subm", subm.ID, "error", err)
		return true
	}
}
