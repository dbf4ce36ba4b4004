package processing

import "facelens/internal/models"

// SelectionOrder is the order in which scores are compared. On a tie the
// label that comes first here wins.
var SelectionOrder = [...]string{
	"anger", "contempt", "disgust", "fear",
	"happiness", "neutral", "sadness", "surprise",
}

// Vocabulary is the fixed set of emotion labels the tally tracks.
var Vocabulary = [...]string{
	"neutral", "sadness", "happiness", "disgust",
	"contempt", "anger", "surprise", "fear",
}

type Score struct {
	Label      string
	Confidence float64
}

// Scores lists the confidences in SelectionOrder.
func Scores(e models.EmotionScores) [len(SelectionOrder)]Score {
	return [...]Score{
		{"anger", e.Anger},
		{"contempt", e.Contempt},
		{"disgust", e.Disgust},
		{"fear", e.Fear},
		{"happiness", e.Happiness},
		{"neutral", e.Neutral},
		{"sadness", e.Sadness},
		{"surprise", e.Surprise},
	}
}

// Dominant returns the highest scoring emotion, first in SelectionOrder on ties.
func Dominant(e models.EmotionScores) Score {
	scores := Scores(e)
	best := scores[0]
	for _, s := range scores[1:] {
		if s.Confidence > best.Confidence {
			best = s
		}
	}
	return best
}

// EmotionTally counts distinct emotions seen during a session. It only
// grows and never resets. Not safe for concurrent use; the analysis loop
// owns it.
type EmotionTally struct {
	remaining map[string]struct{}
	count     int
}

func NewEmotionTally() *EmotionTally {
	t := &EmotionTally{remaining: make(map[string]struct{}, len(Vocabulary))}
	for _, label := range Vocabulary {
		t.remaining[label] = struct{}{}
	}
	return t
}

// Observe records a sighting and reports whether it was the first one for
// label. Labels outside the vocabulary are ignored.
func (t *EmotionTally) Observe(label string) bool {
	if _, ok := t.remaining[label]; !ok {
		return false
	}
	delete(t.remaining, label)
	t.count++
	return true
}

// Count is the number of distinct labels observed so far.
func (t *EmotionTally) Count() int {
	return t.count
}

// Remaining lists the labels not yet seen, in Vocabulary order.
func (t *EmotionTally) Remaining() []string {
	out := make([]string, 0, len(t.remaining))
	for _, label := range Vocabulary {
		if _, ok := t.remaining[label]; ok {
			out = append(out, label)
		}
	}
	return out
}
