// Package userstore holds the registered (username, secret) records and
// their flat-file persistence.
package userstore

import (
	"bufio"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkaski/cubby/internal/errors"
)

// delimiter joins the fields of one persisted record. Fields are not
// escaped: a username or secret containing the delimiter corrupts its
// record on reload. Kept as-is for format compatibility.
const delimiter = ","

// User is a handle to one registered user.
type User struct {
	Username string
	Secret   string
}

// Store is the shared credential store. It is loaded wholesale at
// construction and fully rewritten on every registration.
//
// Store carries no internal locking. The server shares one Store across
// connection goroutines, so concurrent registrations can race; this mirrors
// the thread-per-connection model the protocol was designed under.
type Store struct {
	path  string
	users []*User
}

// Open loads the store from path. A missing file yields an empty store;
// the file is created on the first save.
func Open(path string) (*Store, error) {
	s := &Store{path: path}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("open user file: %w", err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		// No escaping: a delimiter inside a field truncates the record
		// here. Extra fields are dropped, not rejected.
		fields := strings.Split(line, delimiter)
		u := &User{Username: fields[0]}
		if len(fields) > 1 {
			u.Secret = fields[1]
		}
		s.users = append(s.users, u)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read user file: %w", err)
	}

	return s, nil
}

// Register adds a new user and persists the full record set.
// Usernames are unique (case-sensitive exact match).
func (s *Store) Register(username, secret string) (*User, error) {
	for _, u := range s.users {
		if u.Username == username {
			return nil, errors.NewDuplicateUser()
		}
	}

	u := &User{Username: username, Secret: secret}
	s.users = append(s.users, u)

	if err := s.save(); err != nil {
		return nil, errors.NewInternal(err)
	}

	return u, nil
}

// Authenticate returns the user matching both username and secret.
func (s *Store) Authenticate(username, secret string) (*User, error) {
	for _, u := range s.users {
		if u.Username == username {
			if u.Secret == secret {
				return u, nil
			}
			return nil, errors.NewWrongSecret()
		}
	}
	return nil, errors.NewUnknownUser()
}

// Len returns the number of registered users.
func (s *Store) Len() int {
	return len(s.users)
}

// save rewrites the whole backing file, one record per line.
func (s *Store) save() error {
	if dir := filepath.Dir(s.path); dir != "." {
		if err := os.MkdirAll(dir, 0700); err != nil {
			return fmt.Errorf("create user file directory: %w", err)
		}
	}

	var b strings.Builder
	for _, u := range s.users {
		b.WriteString(u.Username)
		b.WriteString(delimiter)
		b.WriteString(u.Secret)
		b.WriteString("\n")
	}

	if err := os.WriteFile(s.path, []byte(b.String()), 0600); err != nil {
		return fmt.Errorf("write user file: %w", err)
	}
	return nil
}
