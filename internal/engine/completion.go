package engine

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/vampirenirmal/storyarc/internal/host"
	"github.com/vampirenirmal/storyarc/internal/textgen"
)

// narratorName labels the synthetic messages the engine appends.
const narratorName = "Narrator"

const (
	epilogueHeading = "**Epilogue**"
	summaryHeading  = "**Story Arc Summary**"
)

// endOfArcNotice is the fixed closing message, appended once every
// enabled post-arc step has landed.
const endOfArcNotice = "The story arc has reached its end. Reset the arc whenever you are ready to begin a new story."

const epilogueInstruction = "You are the story's narrator. Using the transcript provided, write a " +
	"closing epilogue that gives the story a sense of ending. Begin your reply with the exact " +
	"heading **Epilogue** on its own line, then write two or three short paragraphs. Stay inside " +
	"the story's world; do not address the reader and do not explain your choices."

const summaryInstructionFmt = "Summarize the story told in the transcript provided, in at most %d " +
	"words. Begin your reply with the exact heading **Story Arc Summary** on its own line. Cover " +
	"the major events in the order they happened and how the story resolved."

// runCompletion executes the post-arc sequence: epilogue, then
// summary, then the end-of-arc notice once every enabled step has
// landed. The steps are independent: a failed epilogue leaves its
// shown flag unset for RetryPostArc but never blocks the summary.
func (c *Controller) runCompletion(ctx context.Context, conversationID string) {
	set := c.deps.Settings.Current()
	st := c.deps.States.Get(ctx, conversationID)

	c.logger.Info("arc complete, running post-arc sequence",
		"conversation_id", conversationID,
		"epilogue_enabled", set.EpilogueEnabled,
		"summary_enabled", set.SummaryEnabled)

	if set.EpilogueEnabled && !st.EpilogueShown {
		text, err := c.generateEpilogue(ctx, conversationID)
		if err == nil {
			err = c.appendNarration(ctx, conversationID, text)
		}
		if err != nil {
			c.logger.Error("epilogue step failed, flag left unset",
				"conversation_id", conversationID,
				"error", err)
		} else {
			st.EpilogueShown = true
			c.deps.States.Put(ctx, conversationID, st)
			c.settle()
		}
	}

	if set.SummaryEnabled && !st.SummaryShown {
		text, err := c.generateSummary(ctx, conversationID, set.SummaryMessageCount, set.SummaryWordBudget)
		if err == nil {
			err = c.appendNarration(ctx, conversationID, text)
		}
		if err != nil {
			c.logger.Error("summary step failed, flag left unset",
				"conversation_id", conversationID,
				"error", err)
		} else {
			st.SummaryShown = true
			c.deps.States.Put(ctx, conversationID, st)
			c.settle()
		}
	}

	epilogueSatisfied := !set.EpilogueEnabled || st.EpilogueShown
	summarySatisfied := !set.SummaryEnabled || st.SummaryShown
	if epilogueSatisfied && summarySatisfied {
		if err := c.appendNarration(ctx, conversationID, endOfArcNotice); err != nil {
			c.logger.Error("appending end-of-arc notice failed",
				"conversation_id", conversationID,
				"error", err)
		}
	}
}

func (c *Controller) generateEpilogue(ctx context.Context, conversationID string) (string, error) {
	source := c.transcript(conversationID, c.limits.EpilogueContext)
	if source == "" {
		return "", errors.New("no messages to build an epilogue from")
	}

	text, err := c.deps.Generator.Generate(ctx, textgen.Request{
		SystemPrompt: epilogueInstruction,
		Prompt:       source,
		MaxTokens:    c.limits.ResponseTokens,
	})
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", textgen.ErrEmptyResponse
	}
	return ensureHeading(text, epilogueHeading), nil
}

// generateSummary builds the summary from the whole transcript, or
// only the last messageCount messages when the setting is positive.
func (c *Controller) generateSummary(ctx context.Context, conversationID string, messageCount, wordBudget int) (string, error) {
	source := c.transcript(conversationID, messageCount)
	if source == "" {
		return "", errors.New("no messages to summarize")
	}

	text, err := c.deps.Generator.Generate(ctx, textgen.Request{
		SystemPrompt: fmt.Sprintf(summaryInstructionFmt, wordBudget),
		Prompt:       source,
		MaxTokens:    c.limits.ResponseTokens,
	})
	if err != nil {
		return "", err
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", textgen.ErrEmptyResponse
	}
	return ensureHeading(text, summaryHeading), nil
}

// transcript renders the conversation's non-system messages oldest
// first as "Name: text" lines, keeping only the last n when n > 0.
func (c *Controller) transcript(conversationID string, n int) string {
	msgs := c.deps.History.History(conversationID)

	lines := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if m.IsSystem {
			continue
		}
		name := m.DisplayName
		if name == "" {
			if m.IsUser {
				name = "User"
			} else {
				name = "Assistant"
			}
		}
		lines = append(lines, name+": "+m.Text)
	}

	if n > 0 && len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return strings.Join(lines, "\n")
}

// ensureHeading prepends the required heading when the model left it
// out.
func ensureHeading(text, heading string) string {
	if strings.HasPrefix(text, heading) {
		return text
	}
	return heading + "\n\n" + text
}

// appendNarration pushes a synthetic narrator message into the chat.
// The message id is registered as the engine's own before the append,
// so a host that echoes the append back as a message-received signal
// can never count it as a step.
func (c *Controller) appendNarration(ctx context.Context, conversationID, text string) error {
	msg := host.Message{
		ID:          uuid.NewString(),
		IsUser:      false,
		Text:        text,
		DisplayName: narratorName,
		Timestamp:   time.Now(),
	}
	c.markSynthetic(msg.ID)

	if err := c.deps.Messages.Append(ctx, conversationID, msg); err != nil {
		return fmt.Errorf("appending narration: %w", err)
	}
	return nil
}

func (c *Controller) markSynthetic(messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.synthetic[messageID] = struct{}{}
}

func (c *Controller) isSynthetic(messageID string) bool {
	if messageID == "" {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.synthetic[messageID]
	return ok
}

// settle pauses between post-arc appends so the host's UI can catch
// up. Best effort only; correctness never depends on the duration.
func (c *Controller) settle() {
	if c.settleDelay > 0 {
		time.Sleep(c.settleDelay)
	}
}
