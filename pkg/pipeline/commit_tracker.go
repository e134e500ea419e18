package pipeline

import (
	"strings"
	"sync"
	"sync/atomic"
	"time"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
)

// CommitTracker consumes Hypothesis values from the ASR worker and commits a
// stable prefix once K successive re-decodes agree on it (or a timeout
// elapses without agreement). It is the heart of the pipeline (spec §4.4).
//
// The committed text C is tracked as the raw concatenation of emitted
// deltas (joined by a single space once C is non-empty), never as the
// normalized comparison prefix P — this is what makes the "no duplication"
// invariant (concatenating all deltas reproduces C) hold, and it is also
// what lets commits preserve the casing/punctuation of whatever hypothesis
// produced them. Each emitted Segment's delta text stays trimmed of that
// boundary space, since it is rendered standalone on the wire.
//
// A successful commit also clears H: the next commit needs K fresh
// re-decodes to agree, rather than reusing ring entries a prior commit
// already spent (spec §8 scenario 1's "next batch" of three hypotheses).
type CommitTracker struct {
	mu sync.Mutex

	k           int
	timeout     time.Duration
	history     []string // ring of up to k most recent raw hypotheses
	committed   string   // C: raw concatenation of all emitted deltas so far
	lastCommit  time.Time
	nextSegID   int64

	minWords int32 // atomic: commit_min_words, raised by backpressure hints
}

var foldCaser = cases.Fold()

// NewCommitTracker constructs a tracker. now is the session start time, used
// to initialize t_last per spec §4.4.
func NewCommitTracker(k int, timeout time.Duration, minWords int, now time.Time) *CommitTracker {
	if k < 1 {
		k = 1
	}
	ct := &CommitTracker{
		k:          k,
		timeout:    timeout,
		lastCommit: now,
	}
	ct.SetMinWords(minWords)
	return ct
}

// SetMinWords adjusts commit_min_words; called by the Backpressure
// controller to lengthen segments under load (spec §4.6).
func (c *CommitTracker) SetMinWords(n int) {
	atomic.StoreInt32(&c.minWords, int32(n))
}

func (c *CommitTracker) MinWords() int {
	return int(atomic.LoadInt32(&c.minWords))
}

// Committed returns a copy of the currently committed text C.
func (c *CommitTracker) Committed() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.committed
}

// nextSegmentID assigns a monotonically increasing segment_id.
func (c *CommitTracker) nextSegmentID() int64 {
	c.nextSegID++
	return c.nextSegID
}

// Process consumes one hypothesis and returns a newly committed Segment, if
// any commit (stability or timeout) fired this tick.
func (c *CommitTracker) Process(h Hypothesis, now time.Time) (*Segment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.history = append(c.history, h.Text)
	if len(c.history) > c.k {
		c.history = c.history[len(c.history)-c.k:]
	}

	minWords := c.MinWords()
	oldTokenCount := len(strings.Fields(normalizeForCompare(c.committed)))

	if len(c.history) == c.k {
		rawPrefix := longestCommonPrefix(c.history)
		trimmedP := normalizeForCompare(rawPrefix)
		if len([]rune(rawPrefix)) < shortestRuneLen(c.history) {
			// The prefix ends strictly before the end of the shortest
			// hypothesis, so divergence cut it off mid-token — trim back to
			// the last complete boundary. If it instead runs the full length
			// of the shortest hypothesis, that hypothesis's final token is
			// already complete and must be kept (spec §8 scenario 1).
			trimmedP = trimToTokenBoundary(trimmedP)
		}
		newTokenCount := len(strings.Fields(trimmedP))

		if c.extendsCommitted(trimmedP, oldTokenCount, newTokenCount) && c.meetsMinWords(oldTokenCount, newTokenCount, minWords) {
			delta := rawDelta(h.Text, oldTokenCount, newTokenCount)
			if delta != "" {
				seg := c.commitDelta(delta, now)
				seg.CommitReason = "stability"
				c.history = nil
				return seg, true
			}
		}
	}

	// Stability didn't fire (or the ring isn't full yet) — check the timeout
	// fallback against the newest hypothesis, verbatim.
	if now.Sub(c.lastCommit) >= c.timeout {
		normNewest := normalizeForCompare(h.Text)
		newTokenCount := len(strings.Fields(normNewest))

		if c.extendsCommitted(normNewest, oldTokenCount, newTokenCount) && c.meetsMinWords(oldTokenCount, newTokenCount, minWords) {
			delta := rawDelta(h.Text, oldTokenCount, newTokenCount)
			if delta != "" {
				seg := c.commitDelta(delta, now)
				seg.CommitReason = "timeout"
				c.history = nil
				return seg, true
			}
		}
	}

	return nil, false
}

// ForceCommit runs once on session stop: commits using the newest hypothesis
// verbatim, ignoring K but still respecting commit_min_words (spec §4.4).
func (c *CommitTracker) ForceCommit(h Hypothesis, now time.Time) (*Segment, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	oldTokenCount := len(strings.Fields(normalizeForCompare(c.committed)))
	normNewest := normalizeForCompare(h.Text)
	newTokenCount := len(strings.Fields(normNewest))

	if !c.extendsCommitted(normNewest, oldTokenCount, newTokenCount) {
		return nil, false
	}
	if !c.meetsMinWords(oldTokenCount, newTokenCount, c.MinWords()) {
		return nil, false
	}

	delta := rawDelta(h.Text, oldTokenCount, newTokenCount)
	if delta == "" {
		return nil, false
	}
	seg := c.commitDelta(delta, now)
	seg.CommitReason = "force"
	return seg, true
}

// meetsMinWords reports whether growing from oldTokenCount to newTokenCount
// tokens satisfies commit_min_words. The very first commit (oldTokenCount
// == 0) is exempt: min_words exists to batch words onto an already-growing
// segment under backpressure, not to withhold a session's first segment
// until it happens to reach that length.
func (c *CommitTracker) meetsMinWords(oldTokenCount, newTokenCount, minWords int) bool {
	if oldTokenCount == 0 {
		return true
	}
	return newTokenCount-oldTokenCount >= minWords
}

// extendsCommitted reports whether the normalized candidate prefix
// genuinely extends the already-committed text: strictly more tokens, and
// the overlapping prefix still matches C. The second condition is what
// makes self-repair tolerance concrete — a same-or-shorter-length
// contradiction (spec scenario 2) always fails the token-count check, and a
// longer-but-diverging hypothesis additionally fails the prefix check,
// so neither ever rewrites C.
func (c *CommitTracker) extendsCommitted(normCandidate string, oldTokenCount, newTokenCount int) bool {
	if newTokenCount <= oldTokenCount {
		return false
	}
	if oldTokenCount == 0 {
		return true
	}
	normC := normalizeForCompare(c.committed)
	return strings.HasPrefix(normCandidate, normC)
}

// commitDelta appends delta to the committed text and returns the Segment.
// Caller must hold c.mu.
func (c *CommitTracker) commitDelta(delta string, now time.Time) *Segment {
	if c.committed != "" && delta != "" {
		c.committed += " " + delta
	} else {
		c.committed += delta
	}
	c.lastCommit = now
	return &Segment{
		ID:         c.nextSegmentID(),
		SourceText: delta,
		CommitAt:   now.UnixMilli(),
	}
}

// normalizeForCompare lowercases (Unicode case-folds) and collapses
// whitespace runs, for comparison only — never stored or emitted. Uses
// golang.org/x/text/cases for correct multi-script folding (the Language
// enum includes ja/zh/de, where strings.ToLower is not equivalent).
func normalizeForCompare(s string) string {
	folded := foldCaser.String(s)
	fields := strings.Fields(folded)
	return strings.Join(fields, " ")
}

// shortestRuneLen returns the rune length of the shortest string in strs.
func shortestRuneLen(strs []string) int {
	min := -1
	for _, s := range strs {
		n := len([]rune(s))
		if min == -1 || n < min {
			min = n
		}
	}
	return min
}

// longestCommonPrefix returns the rune-wise longest common prefix of strs.
func longestCommonPrefix(strs []string) string {
	if len(strs) == 0 {
		return ""
	}
	prefix := []rune(strs[0])
	for _, s := range strs[1:] {
		r := []rune(s)
		i := 0
		for i < len(prefix) && i < len(r) && prefix[i] == r[i] {
			i++
		}
		prefix = prefix[:i]
		if len(prefix) == 0 {
			break
		}
	}
	return string(prefix)
}

// isSentenceTerminator reports whether r ends a sentence, in several
// scripts (spec §9: token boundary trimming uses Unicode whitespace and
// sentence-terminator classes).
func isSentenceTerminator(r rune) bool {
	switch r {
	case '.', '!', '?', '。', '！', '？', '؟':
		return true
	}
	return false
}

// trimToTokenBoundary trims s back to the last whitespace or
// sentence-terminator rune, so a stability commit never splits a word
// mid-character (spec §4.4 prefix comparison invariant). s is expected to
// already be single-space-joined (the output of normalizeForCompare).
func trimToTokenBoundary(s string) string {
	if s == "" {
		return s
	}
	r, _ := utf8.DecodeLastRuneInString(s)
	if unicode.IsSpace(r) {
		return strings.TrimRightFunc(s, unicode.IsSpace)
	}
	if isSentenceTerminator(r) {
		return s
	}

	trimmed := s
	for len(trimmed) > 0 {
		r, size := utf8.DecodeLastRuneInString(trimmed)
		if unicode.IsSpace(r) {
			return strings.TrimRightFunc(trimmed[:len(trimmed)-size], unicode.IsSpace)
		}
		if isSentenceTerminator(r) {
			return trimmed
		}
		trimmed = trimmed[:len(trimmed)-size]
	}
	return ""
}

// tokenEndOffsets returns, for each whitespace-separated token in s (in
// rune-index space), the index immediately after that token ends (i.e.
// before the whitespace that follows it, or len(runes) for the last token).
func tokenEndOffsets(s string) []int {
	runes := []rune(s)
	var offsets []int
	inToken := false
	for i, r := range runes {
		if unicode.IsSpace(r) {
			if inToken {
				offsets = append(offsets, i)
				inToken = false
			}
		} else {
			inToken = true
		}
	}
	if inToken {
		offsets = append(offsets, len(runes))
	}
	return offsets
}

// rawDelta slices the raw (cased, punctuated) newest hypothesis between the
// end of its oldTokenCount-th token and the end of its newTokenCount-th
// token — the newly committed text, in the newest decoder's own rendering,
// per spec §9's resolved open question (P decides the boundary length; the
// delta text is sliced from the newest hypothesis at that boundary).
func rawDelta(newest string, oldTokenCount, newTokenCount int) string {
	offsets := tokenEndOffsets(newest)
	if newTokenCount > len(offsets) {
		newTokenCount = len(offsets)
	}
	if newTokenCount <= oldTokenCount {
		return ""
	}

	runes := []rune(newest)
	start := 0
	if oldTokenCount > 0 && oldTokenCount <= len(offsets) {
		start = offsets[oldTokenCount-1]
	}
	end := offsets[newTokenCount-1]
	if start > end || start > len(runes) || end > len(runes) {
		return ""
	}
	return strings.TrimSpace(string(runes[start:end]))
}

// CountWords returns the number of whitespace-separated tokens in s.
func CountWords(s string) int {
	return len(strings.Fields(s))
}
