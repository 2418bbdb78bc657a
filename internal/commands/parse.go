package commands

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"racebot/internal/models"
)

var (
	ErrUnterminatedQuote = errors.New("unterminated quote")
	ErrMissingArgument   = errors.New("missing argument")
)

// Invocation is a command message split into its name and arguments.
type Invocation struct {
	Name string
	Args []string
}

// Parse recognizes "<prefix><name> args...". ok is false for messages that
// are not commands.
func Parse(prefix, content string) (inv Invocation, ok bool, err error) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, prefix) || len(content) == len(prefix) {
		return Invocation{}, false, nil
	}
	tokens, err := Tokenize(content[len(prefix):])
	if err != nil {
		return Invocation{}, true, err
	}
	if len(tokens) == 0 || tokens[0] == "" {
		return Invocation{}, false, nil
	}
	return Invocation{Name: strings.ToLower(tokens[0]), Args: tokens[1:]}, true, nil
}

// Tokenize splits on whitespace. A quote opens at the start of a token or
// right after "=" or ":", as in name="Weekly 12"; elsewhere it is literal.
func Tokenize(s string) ([]string, error) {
	var (
		out   []string
		cur   strings.Builder
		quote rune
		inTok bool
		prev  rune
	)
	for _, r := range s {
		opens := !inTok || prev == '=' || prev == ':'
		prev = r
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case (r == '"' || r == '\'') && opens:
			quote = r
			inTok = true
		case unicode.IsSpace(r):
			if inTok {
				out = append(out, cur.String())
				cur.Reset()
				inTok = false
			}
		default:
			cur.WriteRune(r)
			inTok = true
		}
	}
	if quote != 0 {
		return nil, ErrUnterminatedQuote
	}
	if inTok {
		out = append(out, cur.String())
	}
	return out, nil
}

// namedArgs reads "key=value", "key:value" and "key: value" pairs. Keys are
// matched case-insensitively against allowed, mapping each alias to its
// canonical key.
func namedArgs(args []string, allowed map[string]string) (map[string]string, error) {
	out := map[string]string{}
	for i := 0; i < len(args); i++ {
		tok := args[i]
		sep := strings.IndexAny(tok, "=:")
		if sep <= 0 {
			return nil, fmt.Errorf("expected key=value, got %q", tok)
		}
		key, val := strings.ToLower(tok[:sep]), tok[sep+1:]
		if val == "" && i+1 < len(args) {
			i++
			val = args[i]
		}
		canon, ok := allowed[key]
		if !ok {
			return nil, fmt.Errorf("unknown option %q", key)
		}
		out[canon] = val
	}
	return out, nil
}

// ---------- Typed arguments ----------

type CreateRaceArgs struct {
	Name  string
	Flags string
	Role  string
	Start *time.Time
	End   *time.Time
}

var createRaceKeys = map[string]string{
	"name":            "name",
	"flags":           "flags",
	"role":            "role",
	"race_role":       "role",
	"start":           "start",
	"start_timestamp": "start",
	"end":             "end",
	"end_timestamp":   "end",
}

func parseCreateRace(args []string) (CreateRaceArgs, error) {
	kv, err := namedArgs(args, createRaceKeys)
	if err != nil {
		return CreateRaceArgs{}, err
	}
	a := CreateRaceArgs{Name: strings.TrimSpace(kv["name"]), Flags: kv["flags"], Role: kv["role"]}
	if a.Name == "" {
		return a, fmt.Errorf("name: %w", ErrMissingArgument)
	}
	if a.Start, err = optionalTime(kv["start"]); err != nil {
		return a, fmt.Errorf("start: %w", err)
	}
	if a.End, err = optionalTime(kv["end"]); err != nil {
		return a, fmt.Errorf("end: %w", err)
	}
	if a.Start != nil && a.End != nil && !a.End.After(*a.Start) {
		return a, errors.New("end must be after start")
	}
	return a, nil
}

type LiveRaceArgs struct {
	Name  string
	Flags string
	Role  string
}

var liveRaceKeys = map[string]string{"name": "name", "flags": "flags", "role": "role", "race_role": "role"}

func parseLiveRace(args []string) (LiveRaceArgs, error) {
	kv, err := namedArgs(args, liveRaceKeys)
	if err != nil {
		return LiveRaceArgs{}, err
	}
	a := LiveRaceArgs{Name: strings.TrimSpace(kv["name"]), Flags: kv["flags"], Role: kv["role"]}
	if a.Name == "" {
		return a, fmt.Errorf("name: %w", ErrMissingArgument)
	}
	return a, nil
}

type SubmitArgs struct {
	Time  string
	Proof string
}

func parseSubmit(args []string) (SubmitArgs, error) {
	if len(args) == 0 {
		return SubmitArgs{}, fmt.Errorf("time: %w", ErrMissingArgument)
	}
	a := SubmitArgs{Time: args[0]}
	if len(args) > 1 {
		a.Proof = strings.Join(args[1:], " ")
	}
	return a, nil
}

type TitleArgs struct {
	Title string
}

func parseTitle(args []string) (TitleArgs, error) {
	t := strings.TrimSpace(strings.Join(args, " "))
	if t == "" {
		return TitleArgs{}, fmt.Errorf("title: %w", ErrMissingArgument)
	}
	return TitleArgs{Title: t}, nil
}

type URLArgs struct {
	URL string
}

func parseURL(args []string) (URLArgs, error) {
	if len(args) == 0 {
		return URLArgs{}, fmt.Errorf("url: %w", ErrMissingArgument)
	}
	return URLArgs{URL: args[0]}, nil
}

type MentionArgs struct {
	Users []models.User
}

func parseMentions(mentions []models.User) (MentionArgs, error) {
	if len(mentions) == 0 {
		return MentionArgs{}, fmt.Errorf("mention: %w", ErrMissingArgument)
	}
	return MentionArgs{Users: mentions}, nil
}

// timeLayouts are accepted besides unix seconds, all read as UTC.
var timeLayouts = []string{time.RFC3339, "2006-01-02 15:04", "2006-01-02T15:04"}

func optionalTime(s string) (*time.Time, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	if n, err := strconv.ParseInt(s, 10, 64); err == nil {
		t := time.Unix(n, 0).UTC()
		return &t, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, fmt.Errorf("cannot read time %q", s)
}
