package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/hairguard/hairguard/internal/docstore"
	"github.com/hairguard/hairguard/internal/ml"
	"github.com/hairguard/hairguard/internal/models"
)

// DefaultThreadID is used when a chat request names no thread.
const DefaultThreadID = "default"

// riskKeywords make the doctor card suggest seeing a clinician.
var riskKeywords = []string{
	"出血", "痛い", "強いかゆみ", "赤み", "炎症", "円形脱毛", "急に", "発熱", "膿", "ただれ",
}

const (
	encouragerText = "不安に感じるのは自然な反応です。今ここで一緒に整理しましょう。" +
		"継続できている点を思い出せていますか？"
	coachText = "今日の最小の一手は「同条件で写真を撮る」か「睡眠を30分確保する」。" +
		"1つだけやり切ろう。"
	doctorText = "一般論として、抜け毛は睡眠・ストレス・栄養の影響を受けます。" +
		"ただし診断はできません。"
	doctorRisk    = " 皮膚の痛み・強い赤み・円形の脱毛などがある場合は受診も検討してください。"
	doctorNoRisk  = " 変化が急でなければ、同条件での経過観察が有効です。"
	fixedSummary  = "今日の最小の一手: 「同条件の写真チェックイン」か「睡眠の確保」。"
	roleUser      = "user"
	roleAgent     = "agent"
	minChatCards  = 3
)

const chatPrompt = "あなたは薄毛対策のメンタル支援エージェントです。" +
	"以下の相談内容に対して、3人格（encourager/coach/doctor）の短い回答と" +
	"まとめを日本語で返してください。診断はしないでください。\n" +
	"出力は必ず次のJSON形式のみ:\n" +
	"{\n" +
	"  \"cards\": [\n" +
	"    {\"agent\": \"encourager\", \"text\": \"...\"},\n" +
	"    {\"agent\": \"coach\", \"text\": \"...\"},\n" +
	"    {\"agent\": \"doctor\", \"text\": \"...\"}\n" +
	"  ],\n" +
	"  \"summary\": \"...\" \n" +
	"}\n" +
	"相談内容: %s\n"

// MentalShield answers a worry with three persona cards and a summary and
// appends the exchange to the thread.
type MentalShield struct {
	store  docstore.Store
	text   ml.TextModel
	logger *zap.Logger
}

// NewMentalShield returns a chat service over deps.
func NewMentalShield(deps Deps) *MentalShield {
	return &MentalShield{store: deps.Store, text: deps.Text, logger: deps.Logger}
}

// Chat composes the reply and stores the user message, every card and the
// summary as separate thread messages.
func (m *MentalShield) Chat(ctx context.Context, uid string, req models.MentalShieldRequest) (*models.MentalShieldResponse, error) {
	threadID := req.ThreadID
	if threadID == "" {
		threadID = DefaultThreadID
	}
	if !validSegment(threadID) {
		return nil, invalid("threadId is invalid")
	}
	if strings.TrimSpace(req.Message) == "" {
		return nil, invalid("message is required")
	}

	cards, summary := m.compose(ctx, req.Message)

	messages := ThreadMessages(uid, threadID)
	writes := make([]docstore.Data, 0, len(cards)+2)
	writes = append(writes, chatMessage(roleUser, models.AgentUser, req.Message))
	for _, c := range cards {
		writes = append(writes, chatMessage(roleAgent, c.Agent, c.Text))
	}
	writes = append(writes, chatMessage(roleAgent, models.AgentOrchestrator, summary))
	for _, w := range writes {
		if _, err := m.store.Add(ctx, messages, w); err != nil {
			return nil, fmt.Errorf("save chat message: %w", err)
		}
	}

	return &models.MentalShieldResponse{Cards: cards, Summary: summary, ThreadID: threadID}, nil
}

// ThreadMessages is conversations/{uid}/threads/{threadId}/messages.
func ThreadMessages(uid, threadID string) docstore.CollectionRef {
	return docstore.Collection(models.CollectionConversations).Doc(uid).
		Collection("threads").Doc(threadID).Collection("messages")
}

func chatMessage(role, agent, text string) docstore.Data {
	return docstore.Data{
		"role":      role,
		"agent":     agent,
		"text":      text,
		"createdAt": docstore.ServerTimestamp,
	}
}

func (m *MentalShield) compose(ctx context.Context, message string) ([]models.ChatCard, string) {
	if cards, summary, ok := m.generated(ctx, message); ok {
		return cards, summary
	}

	doctor := doctorText + doctorNoRisk
	if hasRisk(message) {
		doctor = doctorText + doctorRisk
	}
	return []models.ChatCard{
		{Agent: models.AgentEncourager, Text: encouragerText},
		{Agent: models.AgentCoach, Text: coachText},
		{Agent: models.AgentDoctor, Text: doctor},
	}, fixedSummary
}

func hasRisk(message string) bool {
	for _, k := range riskKeywords {
		if strings.Contains(message, k) {
			return true
		}
	}
	return false
}

func (m *MentalShield) generated(ctx context.Context, message string) ([]models.ChatCard, string, bool) {
	if m.text == nil {
		return nil, "", false
	}
	text, err := m.text.Generate(ctx, fmt.Sprintf(chatPrompt, message))
	if err != nil {
		m.logger.Warn("chat generation fell back to fixed cards", zap.Error(err))
		return nil, "", false
	}
	var out struct {
		Cards []struct {
			Agent any `json:"agent"`
			Text  any `json:"text"`
		} `json:"cards"`
		Summary any `json:"summary"`
	}
	if err := ml.ExtractJSON(text, &out); err != nil {
		m.logger.Warn("unparseable chat reply", zap.Error(err))
		return nil, "", false
	}
	summary := ""
	if out.Summary != nil {
		summary = fmt.Sprint(out.Summary)
	}
	if summary == "" {
		return nil, "", false
	}

	var cards []models.ChatCard
	for _, c := range out.Cards {
		agent, _ := c.Agent.(string)
		body := ""
		if c.Text != nil {
			body = fmt.Sprint(c.Text)
		}
		if !models.IsPersona(agent) || body == "" {
			continue
		}
		cards = append(cards, models.ChatCard{Agent: agent, Text: body})
	}
	if len(cards) < minChatCards {
		return nil, "", false
	}
	return cards, summary, true
}
