package app

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"github.com/advdv/bprovide"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/cockroachdb/errors"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

const recordSendTimeout = 2 * time.Second

// MessageSender is the part of the SQS client the record sink uses.
type MessageSender interface {
	SendMessage(ctx context.Context, in *sqs.SendMessageInput, optFns ...func(*sqs.Options)) (*sqs.SendMessageOutput, error)
}

type sqsRecordSink struct {
	client   MessageSender
	queueURL string
	logs     *zap.Logger
}

// NewSQSRecordSink sends every access record as a JSON message to the queue. Records that
// cannot be sent are dropped and reported to logs; the request they describe is not affected.
func NewSQSRecordSink(client MessageSender, queueURL string, logs *zap.Logger) bprovide.RecordSink {
	return sqsRecordSink{client: client, queueURL: queueURL, logs: logs.Named("records")}
}

func (s sqsRecordSink) Emit(ctx context.Context, rec bprovide.Record) {
	body, err := json.Marshal(rec)
	if err != nil {
		s.logs.Error("failed to encode access record", zap.Error(err))
		return
	}

	// the record outlives the request it describes, a client going away must not drop it
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordSendTimeout)
	defer cancel()

	if _, err := s.client.SendMessage(ctx, &sqs.SendMessageInput{
		QueueUrl:    aws.String(s.queueURL),
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"status": {DataType: aws.String("Number"), StringValue: aws.String(strconv.Itoa(rec.Status))},
		},
	}); err != nil {
		s.logs.Error("failed to send access record", zap.Error(err), zap.String("url", rec.URL))
	}
}

// RecordSinkParams holds the dependencies for creating the access record sink.
type RecordSinkParams struct {
	fx.In

	Env       Environment
	Logger    *zap.Logger
	AWSConfig aws.Config
}

// NewRecordSink creates the sink selected by BP_RECORD_SINK.
func NewRecordSink(params RecordSinkParams) (bprovide.RecordSink, error) {
	switch params.Env.recordSink() {
	case "log", "":
		return bprovide.NewZapRecordSink(params.Logger), nil
	case "sqs":
		if params.Env.recordQueueURL() == "" {
			return nil, errors.New("BP_RECORD_QUEUE_URL is required when BP_RECORD_SINK is sqs")
		}

		return NewSQSRecordSink(sqs.NewFromConfig(params.AWSConfig), params.Env.recordQueueURL(), params.Logger), nil
	default:
		return nil, errors.Newf("unsupported BP_RECORD_SINK: %q (supported: log, sqs)", params.Env.recordSink())
	}
}
