package auth

import (
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"
)

const defaultDisplayName = "User"

var emailRE = regexp.MustCompile(`^[a-zA-Z0-9_.+-]+@[a-zA-Z0-9-]+\.[a-zA-Z0-9-.]+$`)

// Admin is an allow-listed administrator. Emails are stored lowercased.
type Admin struct {
	Email string `json:"email"`
	Note  string `json:"note,omitempty"`
}

type Repository interface {
	LoadAll() ([]Admin, error)
	Upsert(admin Admin) error
	Remove(email string) error
}

// Identity is what the page knows about whoever typed the email.
type Identity struct {
	Email       string
	DisplayName string
	Admin       bool
}

type Service struct {
	repo   Repository
	marker string

	mu     sync.RWMutex
	admins map[string]Admin
}

// NewWithRepo preloads the allow-list from repo and merges the initial emails.
// A non-empty marker also grants admin to any email containing it.
func NewWithRepo(repo Repository, initial []string, marker string) (*Service, error) {
	s := &Service{repo: repo, marker: strings.ToLower(marker), admins: make(map[string]Admin)}
	if repo != nil {
		admins, err := repo.LoadAll()
		if err == nil {
			for _, a := range admins {
				s.admins[normalize(a.Email)] = a
			}
		}
	}
	for _, e := range initial {
		key := normalize(e)
		if key == "" {
			continue
		}
		if _, ok := s.admins[key]; !ok {
			s.admins[key] = Admin{Email: key}
		}
	}
	return s, nil
}

func (s *Service) Classify(email string) Identity {
	return Identity{
		Email:       email,
		DisplayName: DisplayName(email),
		Admin:       s.IsAdmin(email),
	}
}

func (s *Service) IsAdmin(email string) bool {
	lower := strings.ToLower(email)
	if s.marker != "" && strings.Contains(lower, s.marker) {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.admins[strings.TrimSpace(lower)]
	return ok
}

func (s *Service) Upsert(admin Admin) error {
	admin.Email = normalize(admin.Email)
	s.mu.Lock()
	s.admins[admin.Email] = admin
	s.mu.Unlock()
	if s.repo != nil {
		return s.repo.Upsert(admin)
	}
	return nil
}

func (s *Service) Remove(email string) error {
	key := normalize(email)
	s.mu.Lock()
	delete(s.admins, key)
	s.mu.Unlock()
	if s.repo != nil {
		return s.repo.Remove(key)
	}
	return nil
}

func (s *Service) List() []Admin {
	s.mu.RLock()
	out := make([]Admin, 0, len(s.admins))
	for _, a := range s.admins {
		out = append(out, a)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out
}

// DisplayName capitalizes the local part of the email, or returns "User" when
// there is no "@".
func DisplayName(email string) string {
	local, _, found := strings.Cut(email, "@")
	if !found {
		return defaultDisplayName
	}
	return capitalize(local)
}

// ValidEmail reports whether s looks like local@domain.tld.
func ValidEmail(s string) bool {
	return emailRE.MatchString(s)
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}

func normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
