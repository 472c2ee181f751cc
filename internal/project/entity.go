package project

import (
	"bytes"
	"encoding/json"
	"strings"
)

type RepoType string

const (
	RepoFrontend  RepoType = "frontend"
	RepoBackend   RepoType = "backend"
	RepoFullstack RepoType = "fullstack"
	RepoUnknown   RepoType = "unknown"
)

type RepoRef struct {
	ID          string   `json:"id,omitempty" yaml:"id,omitempty"`
	Name        string   `json:"name" yaml:"name"`
	FullName    string   `json:"full_name" yaml:"full_name"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Type        RepoType `json:"type,omitempty" yaml:"type,omitempty"`
}

func (r *RepoRef) UnmarshalJSON(data []byte) error {
	type plain RepoRef
	aux := struct {
		*plain
		ID json.RawMessage `json:"id"`
	}{plain: (*plain)(r)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	r.ID = idString(aux.ID)
	return nil
}

// Split returns the owner and repository halves of FullName.
func (r RepoRef) Split() (owner, repo string) {
	owner, repo, _ = strings.Cut(r.FullName, "/")
	return owner, repo
}

type Project struct {
	ID          string    `json:"id" yaml:"id"`
	Name        string    `json:"name" yaml:"name"`
	Description string    `json:"description,omitempty" yaml:"description,omitempty"`
	Repos       []RepoRef `json:"repos,omitempty" yaml:"repos,omitempty"`
	// Repo is the single-repository shape older records still carry.
	Repo *RepoRef `json:"repo,omitempty" yaml:"repo,omitempty"`
}

func (p *Project) UnmarshalJSON(data []byte) error {
	type plain Project
	aux := struct {
		*plain
		ID       json.RawMessage `json:"id"`
		LegacyID json.RawMessage `json:"_id"`
	}{plain: (*plain)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	p.ID = idString(aux.ID)
	if p.ID == "" {
		p.ID = idString(aux.LegacyID)
	}
	return nil
}

// Repositories is the only accessor callers should use for connected
// repositories. It prefers Repos and falls back to the legacy Repo.
func (p Project) Repositories() []RepoRef {
	if len(p.Repos) > 0 {
		return p.Repos
	}
	if p.Repo != nil && p.Repo.FullName != "" {
		return []RepoRef{*p.Repo}
	}
	return nil
}

// WithRepositories replaces the connected repositories, keeping the legacy
// field pointed at the first one for older readers.
func (p Project) WithRepositories(repos []RepoRef) Project {
	p.Repos = repos
	p.Repo = nil
	if len(repos) > 0 {
		first := repos[0]
		p.Repo = &first
	}
	return p
}

// AnalysisTarget is a repository as the analysis endpoint expects it.
type AnalysisTarget struct {
	Owner string   `json:"owner"`
	Repo  string   `json:"repo"`
	Type  RepoType `json:"type"`
}

func (p Project) AnalysisTargets() []AnalysisTarget {
	repos := p.Repositories()
	targets := make([]AnalysisTarget, 0, len(repos))
	for _, r := range repos {
		owner, name := r.Split()
		typ := r.Type
		if typ == "" {
			typ = RepoUnknown
		}
		targets = append(targets, AnalysisTarget{Owner: owner, Repo: name, Type: typ})
	}
	return targets
}

func idString(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return ""
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return ""
	}
	switch x := v.(type) {
	case string:
		return x
	case json.Number:
		return x.String()
	}
	return ""
}
