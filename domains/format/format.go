// Package format renders commits into chat lines using a repository's
// templates.
//
// A template is plain text with %-escapes:
//
//	%a author name     %b branch        %c short hash   %C full hash
//	%e author email    %l commit link   %m subject      %n long name
//	%s short name      %u url           %r reset        %! bold
//	%% literal %       %(code) colour
//
// Unknown escapes render as the escaped character. Each template line yields
// exactly one output line.
package format

import (
	"fmt"
	"strings"

	"github.com/gomantics/gitwatch/domains/repos"
	"github.com/gomantics/gitwatch/libs/gitrepo"
)

// IRC formatting control codes.
const (
	Bold   = "\x02"
	Colour = "\x03"
	Reset  = "\x0f"
)

type state int

const (
	stateNormal state = iota
	stateSubst
	stateColour
)

type table func(key rune) (string, bool)

// Render expands tmpl for commit c of repository r, one line per template
// line.
func Render(r *repos.Repository, c gitrepo.Commit, tmpl string) []string {
	full := fullTable(r, c)
	lines := strings.Split(tmpl, "\n")
	out := make([]string, len(lines))
	for i, line := range lines {
		out[i] = expand(strings.TrimSuffix(line, "\r"), full)
	}
	return out
}

// Message renders the repository's notification template.
func Message(r *repos.Repository, c gitrepo.Commit) []string {
	return Render(r, c, r.CommitMessage)
}

// Reply renders the repository's reply template, or its notification
// template when no reply template is set.
func Reply(r *repos.Repository, c gitrepo.Commit) []string {
	if r.CommitReply == "" {
		return Message(r, c)
	}
	return Render(r, c, r.CommitReply)
}

// Link renders the repository's commit link. Only %c and %C are expanded.
func Link(r *repos.Repository, c gitrepo.Commit) string {
	if r.CommitLink == "" {
		return ""
	}
	return expand(r.CommitLink, linkTable(c))
}

// Commits renders commits, given oldest first, with the notification
// template. When there are more than limit commits only the newest limit are
// rendered, preceded by a summary line. A limit <= 0 renders everything.
func Commits(r *repos.Repository, commits []gitrepo.Commit, limit int) []string {
	var out []string
	if limit > 0 && len(commits) > limit {
		out = append(out, Summary(r, limit, len(commits)))
		commits = commits[len(commits)-limit:]
	}
	for _, c := range commits {
		out = append(out, Message(r, c)...)
	}
	return out
}

// Summary is the line announcing a truncated burst.
func Summary(r *repos.Repository, shown, total int) string {
	return fmt.Sprintf("Showing latest %d of %d commits to %s...", shown, total, r.LongName)
}

func fullTable(r *repos.Repository, c gitrepo.Commit) table {
	link := linkTable(c)
	return func(key rune) (string, bool) {
		switch key {
		case 'a':
			return c.AuthorName, true
		case 'b':
			return r.BranchName(), true
		case 'e':
			return c.AuthorEmail, true
		case 'l':
			if r.CommitLink == "" {
				return "", true
			}
			return expand(r.CommitLink, link), true
		case 'm':
			return c.Subject(), true
		case 'n':
			return r.LongName, true
		case 's':
			return r.ShortName, true
		case 'u':
			return r.URL, true
		case 'r':
			return Reset, true
		case '!':
			return Bold, true
		case '%':
			return "%", true
		}
		return link(key)
	}
}

func linkTable(c gitrepo.Commit) table {
	return func(key rune) (string, bool) {
		switch key {
		case 'c':
			return c.ShortHash(), true
		case 'C':
			return c.Hash, true
		}
		return "", false
	}
}

var lineBreaks = strings.NewReplacer("\r", "", "\n", " ")

func expand(line string, lookup table) string {
	var (
		b      strings.Builder
		colour strings.Builder
		st     = stateNormal
	)

	for _, ch := range line {
		switch st {
		case stateNormal:
			if ch == '%' {
				st = stateSubst
				continue
			}
			b.WriteRune(ch)

		case stateSubst:
			st = stateNormal
			if v, ok := lookup(ch); ok {
				b.WriteString(lineBreaks.Replace(v))
				continue
			}
			if ch == '(' {
				colour.Reset()
				st = stateColour
				continue
			}
			b.WriteRune(ch)

		case stateColour:
			if ch == ')' {
				b.WriteString(Colour)
				b.WriteString(colour.String())
				st = stateNormal
				continue
			}
			colour.WriteRune(ch)
		}
	}

	return b.String()
}
