package service

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"ai-sqlnotebook-be/internal/constant"
	"ai-sqlnotebook-be/internal/dto"
	"ai-sqlnotebook-be/internal/entity"
	"ai-sqlnotebook-be/internal/pkg/logger"
	"ai-sqlnotebook-be/internal/repository/specification"
	"ai-sqlnotebook-be/internal/repository/unitofwork"
	"ai-sqlnotebook-be/pkg/events"
	"ai-sqlnotebook-be/pkg/llm"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

const titleModule = "TitleService"

// ITitleService derives notebook titles in the background. It runs independently
// of entry streaming and never modifies entries.
type ITitleService interface {
	Consume(ctx context.Context) error
}

type titleService struct {
	pubSub         *gochannel.GoChannel
	topicName      string
	uowFactory     unitofwork.RepositoryFactory
	llmProvider    llm.LLMProvider
	delivery       RenderingDelivery
	eventPublisher EventPublisher
	logger         logger.ILogger
}

func NewTitleService(
	pubSub *gochannel.GoChannel,
	topicName string,
	uowFactory unitofwork.RepositoryFactory,
	llmProvider llm.LLMProvider,
	delivery RenderingDelivery,
	eventPublisher EventPublisher,
	log logger.ILogger,
) ITitleService {
	return &titleService{
		pubSub:         pubSub,
		topicName:      topicName,
		uowFactory:     uowFactory,
		llmProvider:    llmProvider,
		delivery:       delivery,
		eventPublisher: eventPublisher,
		logger:         log,
	}
}

func (ts *titleService) Consume(ctx context.Context) error {
	messages, err := ts.pubSub.Subscribe(ctx, ts.topicName)
	if err != nil {
		return err
	}

	go func() {
		for msg := range messages {
			ts.processMessage(msg.Context(), msg)
		}
	}()

	return nil
}

// processMessage always acks. A lost title is harmless and redelivery would
// only repeat the same failure.
func (ts *titleService) processMessage(ctx context.Context, msg *message.Message) {
	defer msg.Ack()

	var payload dto.GenerateTitleMessage
	if err := json.Unmarshal(msg.Payload, &payload); err != nil {
		ts.logger.Error(titleModule, "Failed to unmarshal message", map[string]interface{}{"error": err.Error()})
		return
	}

	if err := ts.generate(ctx, payload); err != nil {
		ts.logger.Warn(titleModule, "Title generation skipped", map[string]interface{}{
			"notebook_id": payload.NotebookId.String(),
			"error":       err.Error(),
		})
	}
}

func (ts *titleService) generate(ctx context.Context, payload dto.GenerateTitleMessage) error {
	uow := ts.uowFactory.NewUnitOfWork(ctx)

	notebook, err := uow.NotebookRepository().FindOne(ctx,
		specification.ByID{ID: payload.NotebookId},
		specification.UserOwnedBy{UserID: payload.UserId},
	)
	if err != nil {
		return fmt.Errorf("load notebook: %w", err)
	}
	if notebook == nil || !notebook.HasDefaultTitle() {
		return nil
	}

	raw, err := ts.llmProvider.Generate(ctx,
		fmt.Sprintf(constant.TitlePromptTemplate, payload.Prompt),
		llm.WithTemperature(0.2),
		llm.WithMaxTokens(32),
	)
	if err != nil {
		return fmt.Errorf("generate title: %w", err)
	}

	title := SanitizeTitle(raw)
	if title == "" {
		return fmt.Errorf("model returned an empty title")
	}

	// Only replace the default title; a rename that happened meanwhile wins.
	affected, err := uow.NotebookRepository().UpdateTitle(ctx, notebook.Id, title,
		specification.FilterBy{Field: "title", Value: entity.DefaultNotebookTitle},
	)
	if err != nil {
		return fmt.Errorf("update title: %w", err)
	}
	if affected == 0 {
		return nil
	}

	ts.delivery.Send(payload.UserId, constant.WsEventNotebookTitle, dto.NotebookTitleUpdate{
		NotebookId: notebook.Id,
		Title:      title,
	})

	if ts.eventPublisher != nil {
		if err := ts.eventPublisher.Publish(ctx, events.NewTitleGenerated(payload.UserId, notebook.Id, title)); err != nil {
			ts.logger.Warn(titleModule, "Failed to publish event", map[string]interface{}{"error": err.Error()})
		}
	}

	ts.logger.Info(titleModule, "Notebook titled", map[string]interface{}{
		"notebook_id": notebook.Id.String(),
		"title":       title,
	})
	return nil
}

// SanitizeTitle keeps the first non-empty line, strips quotes and trailing
// punctuation, and caps the length.
func SanitizeTitle(raw string) string {
	var line string
	for _, l := range strings.Split(raw, "\n") {
		if l = strings.TrimSpace(l); l != "" {
			line = l
			break
		}
	}

	line = strings.TrimPrefix(line, "Title:")
	line = strings.Trim(line, " \t\"'`*")
	line = strings.TrimRight(line, ".!?:; ")
	line = strings.Join(strings.Fields(line), " ")

	runes := []rune(line)
	if len(runes) > constant.TitleMaxRunes {
		line = strings.TrimSpace(string(runes[:constant.TitleMaxRunes]))
	}
	return line
}
