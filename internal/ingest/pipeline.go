package ingest

import (
	"context"
	"strconv"

	"courier/internal/broker"
	"courier/internal/carrier"
	"courier/internal/config"
	"courier/internal/constants"
	"courier/internal/logger"
	"courier/internal/normalize"
	apperrors "courier/pkg/errors"
	"courier/pkg/logging"
	"courier/pkg/models"
	"courier/pkg/tracing"
)

type Deduper interface {
	Claim(ctx context.Context, carrierName, messageID string) (bool, error)
	Release(ctx context.Context, carrierName, messageID string)
}

type Assembler interface {
	Assemble(ctx context.Context, msg *carrier.InboundMessage) (*carrier.InboundMessage, bool, error)
	Discard(ctx context.Context, msg *carrier.InboundMessage) error
}

type IdentityResolver interface {
	Resolve(ctx context.Context, orgID, carrierName, address, displayName string) (models.IdentityRef, error)
}

type WorkflowRunner interface {
	Run(ctx context.Context, msg *models.ServiceMessage)
}

type GroupResolver interface {
	ResolveGroup(ctx context.Context, msg *models.ServiceMessage, channelAddress string) error
}

type DiagnosticsRecorder interface {
	Record(ctx context.Context, eventType, carrierName, ref, detail string)
}

// Pipeline carries one parsed carrier event through claim, reassembly,
// normalization, workflow, routing and publish. The delivery claim is
// released on any failure before the publish succeeded, so the carrier's
// retry is processed instead of suppressed.
type Pipeline struct {
	dedup       Deduper
	fragments   Assembler
	normalizer  *normalize.Normalizer
	identities  IdentityResolver
	workflow    WorkflowRunner
	router      GroupResolver
	producer    broker.Producer
	diagnostics DiagnosticsRecorder
	topics      config.KafkaConfig
	logger      logger.Logger
}

func NewPipeline(
	dedup Deduper,
	fragments Assembler,
	normalizer *normalize.Normalizer,
	identities IdentityResolver,
	wf WorkflowRunner,
	router GroupResolver,
	producer broker.Producer,
	diag DiagnosticsRecorder,
	topics config.KafkaConfig,
	log logger.Logger,
) *Pipeline {
	if topics.MessageTopic == "" {
		topics.MessageTopic = constants.DefaultMessageTopic
	}
	if topics.StatusTopic == "" {
		topics.StatusTopic = constants.DefaultStatusTopic
	}
	return &Pipeline{
		dedup:       dedup,
		fragments:   fragments,
		normalizer:  normalizer,
		identities:  identities,
		workflow:    wf,
		router:      router,
		producer:    producer,
		diagnostics: diag,
		topics:      topics,
		logger:      log,
	}
}

// ProcessInbound handles one inbound message or segment. A nil return means
// the delivery was accepted: either a message was published or a segment was
// buffered. ErrDuplicateDelivery means the carrier redelivered something
// already handled.
func (p *Pipeline) ProcessInbound(ctx context.Context, in *carrier.InboundMessage) error {
	ctx, span := tracing.GetTracer("ingest-pipeline").Start(ctx, "pipeline.inbound")
	defer span.End()

	claimID := claimID(in)
	claimed, err := p.dedup.Claim(ctx, in.Carrier, claimID)
	if err != nil {
		return apperrors.ErrInternal.WithCause(err)
	}
	if !claimed {
		return apperrors.ErrDuplicateDelivery
	}

	whole, complete, err := p.fragments.Assemble(ctx, in)
	if err != nil {
		p.dedup.Release(ctx, in.Carrier, claimID)
		return apperrors.ErrInternal.WithCause(err)
	}
	if !complete {
		return nil
	}

	msg := p.normalizer.Normalize(whole)
	ctx = logging.WithMessageID(ctx, msg.CorrelationID)

	if p.identities != nil {
		ref, err := p.identities.Resolve(ctx, msg.Tenant.OrgID, msg.Carrier, whole.From, whole.SenderName)
		if err != nil {
			// The workflow's identityLookup step still runs; losing the local
			// record only costs the cached id.
			p.logger.WarnwCtx(ctx, "Local identity resolution failed",
				"correlation_id", msg.CorrelationID,
				"error", err,
			)
		} else {
			msg.Identity = &ref
		}
	}

	p.workflow.Run(ctx, &msg)

	if err := p.router.ResolveGroup(ctx, &msg, whole.To); err != nil {
		p.dedup.Release(ctx, in.Carrier, claimID)
		return err
	}

	if err := p.producer.Publish(ctx, p.topics.MessageTopic, msg); err != nil {
		p.dedup.Release(ctx, in.Carrier, claimID)
		if p.diagnostics != nil {
			p.diagnostics.Record(ctx, constants.EventPublishFailed, msg.Carrier, msg.CorrelationID, err.Error())
		}
		return apperrors.ErrPublishFailed.WithCause(err)
	}

	// The buffered set outlives assembly so a failed publish can be retried
	// by redelivering the completing segment. Drop it only now.
	if in.Fragment != nil {
		if err := p.fragments.Discard(ctx, in); err != nil {
			p.logger.WarnwCtx(ctx, "Failed to drop assembled fragment set",
				"correlation_id", msg.CorrelationID,
				"error", err,
			)
		}
	}

	p.logger.InfowCtx(ctx, "Message published",
		"correlation_id", msg.CorrelationID,
		"carrier", msg.Carrier,
		"sqs_group_id", msg.SQSGroupID,
		"on_hold", msg.ConversationOnHold,
	)
	return nil
}

// ProcessStatus publishes a delivery-status callback for a previously sent
// outbound message. Distinct statuses for one message id are distinct events.
func (p *Pipeline) ProcessStatus(ctx context.Context, st *carrier.StatusEvent) error {
	ctx, span := tracing.GetTracer("ingest-pipeline").Start(ctx, "pipeline.status")
	defer span.End()

	claimID := st.MessageID + "#status#" + st.RawStatus
	claimed, err := p.dedup.Claim(ctx, st.Carrier, claimID)
	if err != nil {
		return apperrors.ErrInternal.WithCause(err)
	}
	if !claimed {
		return apperrors.ErrDuplicateDelivery
	}

	ev := p.normalizer.NormalizeStatus(st)
	if err := p.producer.PublishStatus(ctx, p.topics.StatusTopic, ev); err != nil {
		p.dedup.Release(ctx, st.Carrier, claimID)
		return apperrors.ErrPublishFailed.WithCause(err)
	}
	return nil
}

func claimID(in *carrier.InboundMessage) string {
	if in.Fragment != nil {
		return in.MessageID + "#" + strconv.Itoa(in.Fragment.Index)
	}
	return in.MessageID
}
