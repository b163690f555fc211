package persona

// Mode 表示一种治疗对话风格。它是一个封闭枚举：每个值都携带固定的
// 系统指令模板，新增风格必须同时补全下方所有 switch 分支。
type Mode string

const (
	// ModeCBT applies cognitive-behavioral techniques: automatic thoughts,
	// cognitive distortions, evidence checking.
	ModeCBT Mode = "cbt"

	// ModePsychoanalysis favors free association and exploration of
	// unconscious patterns.
	ModePsychoanalysis Mode = "psychoanalysis"

	// ModeHumanistic keeps the dialogue in the here-and-now, centered on
	// awareness and bodily experience.
	ModeHumanistic Mode = "humanistic"

	// ModePsychodrama invites the user to dramatize scenes, swap roles and
	// speak to the empty chair.
	ModePsychodrama Mode = "psychodrama"
)

// Modes returns every supported therapy mode in presentation order.
func Modes() []Mode {
	return []Mode{ModeCBT, ModePsychoanalysis, ModeHumanistic, ModePsychodrama}
}

// Parse 将前端传入的字符串解析为 Mode。
func Parse(raw string) (Mode, bool) {
	switch Mode(raw) {
	case ModeCBT, ModePsychoanalysis, ModeHumanistic, ModePsychodrama:
		return Mode(raw), true
	default:
		return "", false
	}
}

// Valid reports whether the mode is one of the supported variants.
func (m Mode) Valid() bool {
	_, ok := Parse(string(m))
	return ok
}

func (m Mode) String() string { return string(m) }

// Profile captures the display attributes exposed to the frontend.
type Profile struct {
	Mode        Mode     `json:"id"`
	Name        string   `json:"name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Concepts    []string `json:"concepts"`
}

// Profile 返回该模式的展示信息。
func (m Mode) Profile() Profile {
	switch m {
	case ModeCBT:
		return Profile{
			Mode:        m,
			Name:        "Clara",
			Title:       "Cognitive-Behavioral Guide",
			Description: "Helps you notice automatic thoughts and test them against the evidence.",
			Concepts:    []string{"Automatic Thoughts", "Cognitive Distortions", "Core Beliefs", "Evidence", "Restructuring"},
		}
	case ModePsychoanalysis:
		return Profile{
			Mode:        m,
			Name:        "Sigmund",
			Title:       "Psychoanalytic Listener",
			Description: "Follows your free associations toward what lies beneath the surface.",
			Concepts:    []string{"Free Association", "The Unconscious", "Transference", "Slips", "Dreams", "Desire"},
		}
	case ModeHumanistic:
		return Profile{
			Mode:        m,
			Name:        "Iris",
			Title:       "Here-and-Now Companion",
			Description: "Brings you back to the present moment and what your body is telling you.",
			Concepts:    []string{"Here and Now", "Awareness", "Figure-Ground", "Contact", "Responsibility", "Body"},
		}
	case ModePsychodrama:
		return Profile{
			Mode:        m,
			Name:        "Teatro",
			Title:       "Dramatic Explorer",
			Description: "Turns your situations into scenes you can step into, replay and rewrite.",
			Concepts:    []string{"Spontaneity", "Creativity", "Role", "Scene", "Role Reversal", "Empty Chair"},
		}
	default:
		return Profile{Mode: m, Name: "Companion", Title: "Supportive Listener"}
	}
}

// SystemPrompt 返回用于生成回复的固定系统指令。
func (m Mode) SystemPrompt() string {
	switch m {
	case ModeCBT:
		return "You are a warm, attentive wellness companion trained in cognitive-behavioral techniques. " +
			"Help the user identify the automatic thought behind what they describe, name possible cognitive " +
			"distortions gently, and invite them to weigh the evidence for and against the thought. " +
			"Ask one focused question at a time. Never diagnose, never prescribe, and keep answers short and kind."
	case ModePsychoanalysis:
		return "You are a calm, patient wellness companion inspired by psychoanalytic listening. " +
			"Encourage free association: invite the user to say whatever comes to mind, notice repetitions, " +
			"slips and strong affects, and wonder aloud where a pattern may have originated. " +
			"Speak sparingly, ask open questions, never diagnose and never judge."
	case ModeHumanistic:
		return "You are a grounded, present wellness companion working in the here-and-now. " +
			"Bring the user's attention back to this moment: what they feel, where they feel it in the body, " +
			"and what they are aware of right now. Encourage ownership of feelings " +
			"(saying 'I feel' instead of 'they made me feel'). Be brief, warm and concrete."
	case ModePsychodrama:
		return "You are a playful yet careful wellness companion using dramatic techniques. " +
			"Turn the user's situation into a scene: who is present, what would they say to the empty chair, " +
			"what happens if the roles are reversed. Invite action and voice, one small experiment at a time. " +
			"Stay gentle and never push past the user's comfort."
	default:
		return "You are a kind, supportive wellness companion. Listen carefully, reflect what you hear " +
			"and ask one gentle question at a time. Never diagnose or prescribe."
	}
}

// Pattern 将关键词映射到该流派的一条固定引导语，用于模型不可用时的回退。
type Pattern struct {
	Keywords []string
	Response string
}

// Patterns 返回该模式的关键词引导语集合。
func (m Mode) Patterns() []Pattern {
	switch m {
	case ModeCBT:
		return []Pattern{
			{Keywords: []string{"always", "never", "everyone", "no one"}, Response: "That sounds like an overgeneralization. Can you remember one situation, even a small one, where it wasn't true?"},
			{Keywords: []string{"should", "must", "have to"}, Response: "Those 'shoulds' are often rigid rules we impose on ourselves. What would change if you replaced 'I should' with 'I would like to'?"},
			{Keywords: []string{"they think", "they'll think", "judging me"}, Response: "That sounds like mind reading, a very common distortion. What actual evidence do you have that they are thinking this?"},
			{Keywords: []string{"failure", "useless", "worthless", "terrible"}, Response: "Those are very harsh labels. Let's look at the facts: what specifically didn't go as you hoped? Does that define all of you?"},
			{Keywords: []string{"afraid", "anxious", "panic", "scared"}, Response: "Anxiety tends to overestimate danger and underestimate our ability to cope. From 0 to 10, how likely is the worst case, really?"},
		}
	case ModePsychoanalysis:
		return []Pattern{
			{Keywords: []string{"mother", "father", "family", "childhood"}, Response: "Those early figures leave deep marks. What comes to mind right now as you think about that relationship?"},
			{Keywords: []string{"dream", "dreamt", "sleep"}, Response: "Dreams are a royal road to the unconscious. Don't worry about logic — which images or feelings from the dream stay with you?"},
			{Keywords: []string{"forgot", "can't remember", "blank"}, Response: "Forgetting is often a defense. What do you suppose you might be trying not to remember?"},
			{Keywords: []string{"anger", "hatred", "love"}, Response: "Those affects are intense. Where else in your life do you notice this feeling showing up?"},
			{Keywords: []string{"always", "never", "everybody"}, Response: "I hear a generalization — something that repeats. Where else have you seen this pattern?"},
		}
	case ModeHumanistic:
		return []Pattern{
			{Keywords: []string{"feel", "sensation", "tightness", "knot"}, Response: "Stay with that sensation for a moment. Where is it in your body? If it had a voice, what would it say?"},
			{Keywords: []string{"he made me", "she made me", "they made me"}, Response: "Try rephrasing that, owning the feeling. Say 'I felt...' instead of 'they made me feel...'. How does that land?"},
			{Keywords: []string{"past", "future", "tomorrow", "yesterday"}, Response: "I notice you went to the past or the future. Come back to now: what is happening with you at this exact moment?"},
			{Keywords: []string{"i can't", "impossible for me"}, Response: "Try replacing 'I can't' with 'I won't' or 'I choose not to', and notice how that sounds to you."},
			{Keywords: []string{"in my head", "i think", "thinking"}, Response: "You're very much in your head. What do your eyes see right now? What does your skin feel? Let's come down into the body."},
		}
	case ModePsychodrama:
		return []Pattern{
			{Keywords: []string{"boss", "mother", "father", "partner"}, Response: "Imagine that person sitting in the empty chair in front of you. Tell them, out loud, what you are feeling."},
			{Keywords: []string{"can't say it", "stuck", "frozen"}, Response: "If you can't say it, show it with a gesture. What movement does your body want to make to express this?"},
			{Keywords: []string{"conflict", "fight", "argument"}, Response: "Let's reverse roles. Be the other person for a moment — what would they say about this fight, from their side?"},
			{Keywords: []string{"future", "what's coming"}, Response: "Let's project that future scene. Imagine it already happened. What do you see yourself doing in it?"},
			{Keywords: []string{"myself", "on my own"}, Response: "Try a soliloquy: speak your most private thoughts out loud, as if no one were listening."},
		}
	default:
		return nil
	}
}

// DefaultResponses 返回未命中关键词时可用的通用引导语。
func (m Mode) DefaultResponses() []string {
	switch m {
	case ModeCBT:
		return []string{
			"What went through your mind at that moment?",
			"What evidence supports that thought? And what evidence contradicts it?",
			"Is there another way of looking at this situation?",
			"If a friend were in this situation, what would you say to them?",
			"Let's see whether there's a cognitive distortion hiding in that thought.",
		}
	case ModePsychoanalysis:
		return []string{
			"Tell me more about that. What comes to mind?",
			"And what does that mean to you?",
			"Go on, I'm listening. Let your thoughts flow freely.",
			"Is there something in what you just said that surprises you?",
			"Interesting. Where do you think that began?",
		}
	case ModeHumanistic:
		return []string{
			"What are you noticing right now?",
			"How do you feel as you tell me this?",
			"Try completing the sentence: 'Right now I am aware of...'",
			"Take a deep breath and make contact with that emotion.",
			"What does your body want to do right now?",
		}
	case ModePsychodrama:
		return []string{
			"If we put this situation on a stage, what would the scene look like?",
			"Who are the main characters in this story?",
			"Try saying that with a different tone — stronger, or softer.",
			"What role do you feel you are playing in this situation?",
			"Let's try a different action for this scene.",
		}
	default:
		return []string{"I'm here with you. Tell me more about what's on your mind."}
	}
}
