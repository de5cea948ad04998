package pipeline

import (
	"fmt"
	"strings"

	"github.com/ZanzyTHEbar/video-studio/studio/lexicon"
	ports "github.com/ZanzyTHEbar/video-studio/studio/pipeline/ports"
)

// User-visible texts. None of them carries error detail.
const (
	thinkingText = "Thinking about your request…"
	editedText   = "I've applied your edits to the video."

	classifyFailedText = "Sorry, something went wrong while reading your request. Please try again."
	enhanceFailedText  = "Sorry, I couldn't work out how to turn that into a video. Please try again."
	timeoutText        = "Sorry, that took too long. Please try again."
)

func generatingText(d ports.Directive, backend string) string {
	return fmt.Sprintf("Generating your video with %s... (%s, %ds, %s motion)",
		backend, d.Style, d.DurationSeconds, d.MotionIntensity)
}

func createdText(request string) string {
	return `I've created your video: "` + request + `"`
}

func generateFailedText(backend string) string {
	return fmt.Sprintf("Sorry, I couldn't generate that video with %s. Please try again.", backend)
}

func rateLimitedText(backend string) string {
	return fmt.Sprintf("%s is busy right now. Please try again in a moment.", backend)
}

func profileSwitchedText(backend string) string {
	return fmt.Sprintf("Switched to %s. New videos will use this model.", backend)
}

// replyRule answers a conversational turn when any of its words is a token of the text.
type replyRule struct {
	words map[string]struct{}
	reply string
}

// Replier picks a canned answer for turns that are not generation requests.
type Replier struct {
	rules    []replyRule
	fallback string
}

// NewReplier returns the default reply templates.
func NewReplier() *Replier {
	r := &Replier{
		fallback: `Tell me what you'd like to see, for example "a frog dancing in a forest", and I'll turn it into a video.`,
	}
	r.Add([]string{"hello", "hi", "hey", "greetings"},
		"Hi! Describe the video you'd like to see and I'll generate it for you.")
	r.Add([]string{"help", "idea", "ideas", "suggest", "suggestion", "inspire"},
		"Here are a few ideas: a cyberpunk city at night, a peaceful mountain lake at sunrise, or abstract geometric shapes morphing. Ask me to make any of them.")
	r.Add([]string{"thanks", "thank", "thx"},
		"You're welcome! Let me know what you'd like to create next.")
	return r
}

// Add appends a rule. Earlier rules win.
func (r *Replier) Add(words []string, reply string) {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[strings.ToLower(w)] = struct{}{}
	}
	r.rules = append(r.rules, replyRule{words: set, reply: reply})
}

// Reply returns the first matching template for text.
func (r *Replier) Reply(text string) string {
	tokens := lexicon.Tokenize(text)
	for _, rule := range r.rules {
		for _, tok := range tokens {
			if _, ok := rule.words[tok]; ok {
				return rule.reply
			}
		}
	}
	return r.fallback
}
