package gitrepo

import (
	"strings"

	"github.com/go-git/go-git/v5/plumbing/object"
)

// ShortHashLen is how many leading hex characters make a short hash.
const ShortHashLen = 7

// Commit is a read-only view of a commit in a mirror
type Commit struct {
	Hash        string
	AuthorName  string
	AuthorEmail string
	Message     string
}

// ShortHash returns the abbreviated hash.
func (c Commit) ShortHash() string {
	if len(c.Hash) <= ShortHashLen {
		return c.Hash
	}
	return c.Hash[:ShortHashLen]
}

// Subject returns the first line of the commit message.
func (c Commit) Subject() string {
	subject, _, _ := strings.Cut(c.Message, "\n")
	return strings.TrimSuffix(subject, "\r")
}

func toCommit(c *object.Commit) Commit {
	return Commit{
		Hash:        c.Hash.String(),
		AuthorName:  c.Author.Name,
		AuthorEmail: c.Author.Email,
		Message:     c.Message,
	}
}
