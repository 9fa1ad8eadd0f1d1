package settings

import (
	"context"
	"fmt"
	"strings"
)

// Agents returns the agent index.
func (r *Repository) Agents(ctx context.Context) ([]IndexEntry, error) {
	return r.readIndex(ctx, KeyAgentsIndex)
}

// Agent returns the full record for id or nil when it is missing.
func (r *Repository) Agent(ctx context.Context, id string) (*Agent, error) {
	var agent *Agent
	if err := r.read(ctx, r.store.Local, AgentKey(id), &agent); err != nil {
		return nil, err
	}
	return agent, nil
}

// SaveAgent creates or updates an agent. The first agent ever created becomes
// the default.
func (r *Repository) SaveAgent(ctx context.Context, agent Agent) (Agent, error) {
	agent.Name = strings.TrimSpace(agent.Name)
	agent.Prompt = strings.TrimSpace(agent.Prompt)

	if err := r.check(agent); err != nil {
		return Agent{}, err
	}

	entries, err := r.Agents(ctx)
	if err != nil {
		return Agent{}, err
	}

	first := len(entries) == 0
	if agent.ID == "" {
		agent.ID = r.newID()
	} else {
		first = false
	}

	entries = upsertEntry(entries, IndexEntry{ID: agent.ID, Name: agent.Name})

	if err := r.store.Local.Set(ctx, AgentKey(agent.ID), agent); err != nil {
		return Agent{}, fmt.Errorf("writing agent %s: %w", agent.ID, err)
	}
	if err := r.store.Local.Set(ctx, KeyAgentsIndex, entries); err != nil {
		return Agent{}, fmt.Errorf("writing agents index: %w", err)
	}

	if first {
		if err := r.SetDefaultAgent(ctx, agent.ID); err != nil {
			return Agent{}, err
		}
	}

	return agent, nil
}

// RemoveAgent deletes the agent. When it was the default, the first remaining
// agent becomes default, or none when the list is empty.
func (r *Repository) RemoveAgent(ctx context.Context, id string) error {
	entries, err := r.Agents(ctx)
	if err != nil {
		return err
	}

	remaining, found := removeEntry(entries, id)
	if !found {
		return fmt.Errorf("%w: agent %s", ErrNotFound, id)
	}

	defaultID, err := r.DefaultAgent(ctx)
	if err != nil {
		return err
	}

	if err := r.store.Local.Remove(ctx, AgentKey(id)); err != nil {
		return fmt.Errorf("removing agent %s: %w", id, err)
	}
	if err := r.store.Local.Set(ctx, KeyAgentsIndex, remaining); err != nil {
		return fmt.Errorf("writing agents index: %w", err)
	}

	if defaultID != id {
		return nil
	}

	if len(remaining) == 0 {
		return r.store.Local.Set(ctx, KeyDefaultAgent, nil)
	}
	return r.SetDefaultAgent(ctx, remaining[0].ID)
}

// DefaultAgent returns the default agent id or an empty string.
func (r *Repository) DefaultAgent(ctx context.Context) (string, error) {
	values, err := r.store.Local.Get(ctx, KeyDefaultAgent)
	if err != nil {
		return "", err
	}
	id, _ := values[KeyDefaultAgent].(string)
	return id, nil
}

// SetDefaultAgent points the default at id, which must be in the index.
func (r *Repository) SetDefaultAgent(ctx context.Context, id string) error {
	entries, err := r.Agents(ctx)
	if err != nil {
		return err
	}

	for _, e := range entries {
		if e.ID == id {
			return r.store.Local.Set(ctx, KeyDefaultAgent, id)
		}
	}
	return fmt.Errorf("%w: agent %s", ErrNotFound, id)
}

// DefaultAgentPrompt returns the trimmed prompt of the default agent, or an
// empty string when there is no default or its prompt is blank.
func (r *Repository) DefaultAgentPrompt(ctx context.Context) (string, error) {
	id, err := r.DefaultAgent(ctx)
	if err != nil || id == "" {
		return "", err
	}

	agent, err := r.Agent(ctx, id)
	if err != nil || agent == nil {
		return "", err
	}
	return strings.TrimSpace(agent.Prompt), nil
}
