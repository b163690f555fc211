package content

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/omnimind/omnimind-engine/internal/llmparse"
)

// Question 是一道四选一测验题。CorrectAnswer 是 Options 的下标。
type Question struct {
	ID            string   `json:"id"`
	Text          string   `json:"text"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation"`
}

// ScheduleDay 是学习计划中的一天。
type ScheduleDay struct {
	Day      string   `json:"day"`
	Topics   []string `json:"topics"`
	Duration string   `json:"duration"`
}

// Schedule 是一份多日学习计划。
type Schedule struct {
	Title string        `json:"title"`
	Days  []ScheduleDay `json:"days"`
}

const (
	defaultQuestionCount  = 3
	questionsMaxTokens    = 500
	scheduleMaxTokens     = 400
	studyContextMaxBytes  = 500
	studyContextRetrieval = 3
)

// Study 生成测验题目与学习计划。
type Study struct {
	generator TextGenerator
	memories  MemorySearcher
}

// NewStudy 组装学习内容生成器。memories 可为 nil。
func NewStudy(generator TextGenerator, memories MemorySearcher) *Study {
	return &Study{generator: generator, memories: memories}
}

// GenerateQuestions 围绕 topic 生成 count 道选择题。模型输出按草稿对待：
// 提取首个配平 JSON 数组、反序列化并逐题校验；没有任何可用题目时退回
// 一道带标注的占位题。
func (s *Study) GenerateQuestions(ctx context.Context, topic, ownerID string, count int) []Question {
	if count <= 0 {
		count = defaultQuestionCount
	}
	contextText := s.contextFor(ctx, topic, ownerID)

	var builder strings.Builder
	fmt.Fprintf(&builder, "Instruction: Create %d multiple choice questions about %q.\n", count, topic)
	if contextText != "" {
		fmt.Fprintf(&builder, "Context: %s\n", truncate(contextText, studyContextMaxBytes))
	}
	builder.WriteString("Format: Return ONLY a valid JSON array of objects with fields: id (string), text (string question), options (array of 4 strings), correctAnswer (number index 0-3), explanation (string).\n")
	builder.WriteString(`Example: [{"id":"1","text":"Q?","options":["A","B","C","D"],"correctAnswer":0,"explanation":"Exp"}]` + "\n")
	builder.WriteString("JSON:")

	raw, err := s.generator.Complete(ctx, builder.String(), questionsMaxTokens)
	if err != nil {
		log.Printf("[content] question generation failed: %v", err)
		return fallbackQuestions(topic)
	}

	fragment, ok := llmparse.FirstArray(raw)
	if !ok {
		log.Printf("[content] no JSON array in question output")
		return fallbackQuestions(topic)
	}

	var parsed []Question
	if err := json.Unmarshal([]byte(fragment), &parsed); err != nil {
		log.Printf("[content] question output is not valid JSON: %v", err)
		return fallbackQuestions(topic)
	}

	questions := make([]Question, 0, len(parsed))
	for i, q := range parsed {
		if !validQuestion(q) {
			continue
		}
		if strings.TrimSpace(q.ID) == "" {
			q.ID = strconv.Itoa(i + 1)
		}
		questions = append(questions, q)
	}
	if len(questions) == 0 {
		return fallbackQuestions(topic)
	}
	return questions
}

// GenerateSchedule 为 goal 生成一份三日学习计划，availableTime 是每日可用时长。
// 解析或校验失败时退回单日计划。
func (s *Study) GenerateSchedule(ctx context.Context, goal, availableTime string) Schedule {
	var builder strings.Builder
	fmt.Fprintf(&builder, "Instruction: Create a 3-day study schedule for %q with %s available per day.\n", goal, availableTime)
	builder.WriteString("Format: Return ONLY a valid JSON object with fields: title (string), days (array of objects with day (string), topics (array of strings), duration (string)).\n")
	builder.WriteString(`Example: {"title":"Plan","days":[{"day":"Monday","topics":["A"],"duration":"1h"}]}` + "\n")
	builder.WriteString("JSON:")

	raw, err := s.generator.Complete(ctx, builder.String(), scheduleMaxTokens)
	if err != nil {
		log.Printf("[content] schedule generation failed: %v", err)
		return fallbackSchedule(goal, availableTime)
	}

	fragment, ok := llmparse.FirstObject(raw)
	if !ok {
		log.Printf("[content] no JSON object in schedule output")
		return fallbackSchedule(goal, availableTime)
	}

	var schedule Schedule
	if err := json.Unmarshal([]byte(fragment), &schedule); err != nil {
		log.Printf("[content] schedule output is not valid JSON: %v", err)
		return fallbackSchedule(goal, availableTime)
	}
	if !validSchedule(schedule) {
		return fallbackSchedule(goal, availableTime)
	}
	return schedule
}

func (s *Study) contextFor(ctx context.Context, topic, ownerID string) string {
	if s.memories == nil || strings.TrimSpace(ownerID) == "" {
		return ""
	}
	records, err := s.memories.Search(ctx, ownerID, topic, studyContextRetrieval, 0)
	if err != nil {
		log.Printf("[content] memory retrieval failed, generating without context: %v", err)
		return ""
	}
	parts := make([]string, 0, len(records))
	for _, record := range records {
		parts = append(parts, record.Content)
	}
	return strings.Join(parts, "\n")
}

func validQuestion(q Question) bool {
	if strings.TrimSpace(q.Text) == "" {
		return false
	}
	if len(q.Options) != 4 {
		return false
	}
	for _, opt := range q.Options {
		if strings.TrimSpace(opt) == "" {
			return false
		}
	}
	return q.CorrectAnswer >= 0 && q.CorrectAnswer <= 3
}

func validSchedule(s Schedule) bool {
	if strings.TrimSpace(s.Title) == "" || len(s.Days) == 0 {
		return false
	}
	for _, day := range s.Days {
		if strings.TrimSpace(day.Day) == "" {
			return false
		}
	}
	return true
}

func fallbackQuestions(topic string) []Question {
	return []Question{{
		ID:            "fallback-1",
		Text:          fmt.Sprintf("We couldn't generate questions about %q just now. What is the best next step?", topic),
		Options:       []string{"Give up", "Try again in a moment", "Check the model configuration", "Wait indefinitely"},
		CorrectAnswer: 1,
		Explanation:   "The local model failed to produce usable questions. Trying again usually succeeds.",
	}}
}

func fallbackSchedule(goal, availableTime string) Schedule {
	if strings.TrimSpace(availableTime) == "" {
		availableTime = "1h"
	}
	return Schedule{
		Title: "Study plan: " + goal,
		Days: []ScheduleDay{{
			Day:      "Today",
			Topics:   []string{"General review", "Focus on the fundamentals"},
			Duration: availableTime,
		}},
	}
}
