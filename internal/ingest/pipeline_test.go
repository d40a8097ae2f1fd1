package ingest

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"courier/internal/broker"
	"courier/internal/carrier"
	"courier/internal/config"
	"courier/internal/logger"
	"courier/internal/normalize"
	apperrors "courier/pkg/errors"
	"courier/pkg/models"
)

type recordingDeduper struct {
	*memDeduper
	released []string
}

func (d *recordingDeduper) Release(ctx context.Context, carrierName, messageID string) {
	d.released = append(d.released, carrierName+":"+messageID)
	d.memDeduper.Release(ctx, carrierName, messageID)
}

type failingProducer struct {
	capturingProducer
	err error
}

func (p *failingProducer) Publish(ctx context.Context, topic string, msg models.ServiceMessage) error {
	if p.err != nil {
		return p.err
	}
	return p.capturingProducer.Publish(ctx, topic, msg)
}

type failingGroups struct {
	err error
}

func (f failingGroups) ResolveGroup(_ context.Context, msg *models.ServiceMessage, _ string) error {
	if f.err != nil {
		return f.err
	}
	msg.DigitalChannel = &models.ChannelRef{ID: "ch-1", GroupID: "grp-1"}
	return nil
}

type holdingWorkflow struct{}

func (holdingWorkflow) Run(_ context.Context, msg *models.ServiceMessage) {
	msg.ConversationOnHold = true
	for i := range msg.WorkFlowSteps {
		if msg.WorkFlowSteps[i].Status == models.StepRequired {
			msg.WorkFlowSteps[i].Status = models.StepExecutedFailed
		}
	}
}

type recordedDiag struct {
	events []string
}

func (d *recordedDiag) Record(_ context.Context, eventType, carrierName, ref, detail string) {
	d.events = append(d.events, eventType)
}

func inbound(id, text string) *carrier.InboundMessage {
	return &carrier.InboundMessage{
		Carrier:    carrier.WhatsApp,
		MessageID:  id,
		From:       "15559992222",
		To:         "15550001111",
		SenderName: "Ada",
		Text:       text,
		Timestamp:  time.Unix(1717000000, 0),
	}
}

func newPipeline(dedup Deduper, router GroupResolver, producer broker.Producer, diag DiagnosticsRecorder, wf WorkflowRunner) *Pipeline {
	if wf == nil {
		wf = okWorkflow{}
	}
	return NewPipeline(
		dedup,
		newMemAssembler(),
		normalize.New("org-1"),
		staticResolver{},
		wf,
		router,
		producer,
		diag,
		config.KafkaConfig{},
		logger.NopLogger(),
	)
}

func TestProcessInboundPublishesAndKeepsClaim(t *testing.T) {
	dedup := &recordingDeduper{memDeduper: newMemDeduper()}
	producer := &capturingProducer{}
	p := newPipeline(dedup, staticGroups{}, producer, nil, nil)

	err := p.ProcessInbound(context.Background(), inbound("wamid.1", "hi"))
	require.NoError(t, err)
	require.Len(t, producer.messages, 1)
	assert.Empty(t, dedup.released)

	msg := producer.messages[0]
	assert.NotEmpty(t, msg.CorrelationID)
	assert.Equal(t, "org-1:whatsapp:15559992222", msg.SQSGroupID)
	require.NotNil(t, msg.Identity)
	assert.Equal(t, "id-15559992222", msg.Identity.ID)
}

func TestProcessInboundDuplicateClaim(t *testing.T) {
	dedup := &recordingDeduper{memDeduper: newMemDeduper()}
	producer := &capturingProducer{}
	p := newPipeline(dedup, staticGroups{}, producer, nil, nil)

	require.NoError(t, p.ProcessInbound(context.Background(), inbound("wamid.2", "hi")))
	err := p.ProcessInbound(context.Background(), inbound("wamid.2", "hi"))
	assert.ErrorIs(t, err, apperrors.ErrDuplicateDelivery)
	assert.Len(t, producer.messages, 1)
}

func TestProcessInboundUnresolvedRoutingReleasesClaim(t *testing.T) {
	dedup := &recordingDeduper{memDeduper: newMemDeduper()}
	producer := &capturingProducer{}
	p := newPipeline(dedup, failingGroups{err: apperrors.ErrRoutingUnresolved}, producer, nil, nil)

	err := p.ProcessInbound(context.Background(), inbound("wamid.3", "hi"))
	assert.ErrorIs(t, err, apperrors.ErrRoutingUnresolved)
	assert.Empty(t, producer.messages)
	assert.Equal(t, []string{"whatsapp:wamid.3"}, dedup.released)

	// The claim is free again, so the carrier retry goes through.
	p2 := newPipeline(dedup, staticGroups{}, producer, nil, nil)
	require.NoError(t, p2.ProcessInbound(context.Background(), inbound("wamid.3", "hi")))
	assert.Len(t, producer.messages, 1)
}

func TestProcessInboundPublishFailureReleasesClaimAndRecordsDiagnostic(t *testing.T) {
	dedup := &recordingDeduper{memDeduper: newMemDeduper()}
	producer := &failingProducer{err: errors.New("broker unavailable")}
	diag := &recordedDiag{}
	p := newPipeline(dedup, staticGroups{}, producer, diag, nil)

	err := p.ProcessInbound(context.Background(), inbound("wamid.4", "hi"))
	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrPublishFailed.Code, appErr.Code)
	assert.Equal(t, []string{"whatsapp:wamid.4"}, dedup.released)
	assert.Equal(t, []string{"PublishFailed"}, diag.events)
}

func TestProcessInboundWorkflowFailureStillPublishes(t *testing.T) {
	dedup := &recordingDeduper{memDeduper: newMemDeduper()}
	producer := &capturingProducer{}
	p := newPipeline(dedup, staticGroups{}, producer, nil, holdingWorkflow{})

	require.NoError(t, p.ProcessInbound(context.Background(), inbound("wamid.5", "hi")))
	require.Len(t, producer.messages, 1)
	assert.True(t, producer.messages[0].ConversationOnHold)
}

func TestProcessInboundFragmentClaimsArePerSegment(t *testing.T) {
	dedup := &recordingDeduper{memDeduper: newMemDeduper()}
	producer := &capturingProducer{}
	p := newPipeline(dedup, staticGroups{}, producer, nil, nil)

	seg := func(idx int, text string) *carrier.InboundMessage {
		m := inbound("SM1", text)
		m.Carrier = carrier.SMSGW
		m.Fragment = &carrier.FragmentInfo{Index: idx, Count: 2}
		return m
	}

	require.NoError(t, p.ProcessInbound(context.Background(), seg(1, "a")))
	assert.Empty(t, producer.messages)

	require.NoError(t, p.ProcessInbound(context.Background(), seg(2, "b")))
	require.Len(t, producer.messages, 1)
	assert.Equal(t, "ab", producer.messages[0].MessagePayload.TextMessage.Text)

	// A resent segment is answered as a duplicate, not rebuffered.
	err := p.ProcessInbound(context.Background(), seg(1, "a"))
	assert.ErrorIs(t, err, apperrors.ErrDuplicateDelivery)
	assert.Len(t, producer.messages, 1)
}

func TestProcessInboundAssembledFragmentSurvivesPublishFailure(t *testing.T) {
	dedup := &recordingDeduper{memDeduper: newMemDeduper()}
	producer := &failingProducer{}
	p := newPipeline(dedup, staticGroups{}, producer, nil, nil)

	seg := func(idx int, text string) *carrier.InboundMessage {
		m := inbound("SM9", text)
		m.Carrier = carrier.SMSGW
		m.Fragment = &carrier.FragmentInfo{Index: idx, Count: 2}
		return m
	}

	require.NoError(t, p.ProcessInbound(context.Background(), seg(1, "first ")))

	// The final segment assembles the message but the broker is down.
	producer.err = errors.New("broker unavailable")
	err := p.ProcessInbound(context.Background(), seg(2, "half"))
	var appErr *apperrors.Error
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, apperrors.ErrPublishFailed.Code, appErr.Code)
	assert.Equal(t, []string{"smsgw:SM9#2"}, dedup.released)

	// The carrier retries the segment whose claim was released and the whole
	// message goes out, not a fresh one-segment set.
	producer.err = nil
	require.NoError(t, p.ProcessInbound(context.Background(), seg(2, "half")))
	require.Len(t, producer.messages, 1)
	assert.Equal(t, "first half", producer.messages[0].MessagePayload.TextMessage.Text)

	// Earlier segments stay claimed throughout; their replays are duplicates.
	err = p.ProcessInbound(context.Background(), seg(1, "first "))
	assert.ErrorIs(t, err, apperrors.ErrDuplicateDelivery)
	assert.Len(t, producer.messages, 1)
}

func TestProcessStatusDistinctStatusesAreDistinctEvents(t *testing.T) {
	dedup := &recordingDeduper{memDeduper: newMemDeduper()}
	producer := &capturingProducer{}
	p := newPipeline(dedup, staticGroups{}, producer, nil, nil)

	st := func(raw string) *carrier.StatusEvent {
		return &carrier.StatusEvent{
			Carrier:   carrier.WhatsApp,
			MessageID: "wamid.out9",
			Status:    raw,
			RawStatus: raw,
			Recipient: "15559992222",
			Timestamp: time.Unix(1717000300, 0),
		}
	}

	require.NoError(t, p.ProcessStatus(context.Background(), st("delivered")))
	require.NoError(t, p.ProcessStatus(context.Background(), st("read")))
	assert.Len(t, producer.statuses, 2)

	err := p.ProcessStatus(context.Background(), st("read"))
	assert.ErrorIs(t, err, apperrors.ErrDuplicateDelivery)
	assert.Len(t, producer.statuses, 2)
}
