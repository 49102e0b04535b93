package gateway

import (
	"context"
	"encoding/json"
	"log"
	"time"

	goredis "github.com/go-redis/redis/v8"
)

const activeProfileRedisKey = "gateway:active_profile"

// profileChannel is the PubSub channel the advisor listens on for
// personality changes.
const profileChannel = "config:profile"

// ProfileStore manages the active advisor profile and broadcasts changes.
type ProfileStore struct {
	hub *Hub
	rdb *goredis.Client
}

// NewProfileStore creates a ProfileStore backed by the given Hub.
func NewProfileStore(hub *Hub, rdb *goredis.Client) *ProfileStore {
	return &ProfileStore{hub: hub, rdb: rdb}
}

// Load restores the active profile from Redis (if available).
// Called once during gateway startup. Returns true if a profile was restored.
func (ps *ProfileStore) Load(ctx context.Context) bool {
	data, err := ps.rdb.Get(ctx, activeProfileRedisKey).Result()
	if err != nil {
		return false
	}
	var p ActiveProfile
	if json.Unmarshal([]byte(data), &p) != nil || p.Name == "" {
		return false
	}
	ps.hub.mu.Lock()
	ps.hub.activeProfile = p
	ps.hub.mu.Unlock()
	log.Printf("[profile_store] restored active profile from Redis: %s", p.Name)
	return true
}

// Get returns the current active advisor profile.
func (ps *ProfileStore) Get() ActiveProfile {
	ps.hub.mu.RLock()
	defer ps.hub.mu.RUnlock()
	return ps.hub.activeProfile
}

// Set updates the active profile, persists it to Redis, notifies the advisor,
// and broadcasts the change to all connected clients.
func (ps *ProfileStore) Set(p ActiveProfile) {
	ps.hub.mu.Lock()
	ps.hub.activeProfile = p
	ps.hub.mu.Unlock()

	if ps.rdb != nil {
		data, err := json.Marshal(p)
		if err == nil {
			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			if err := ps.rdb.Set(ctx, activeProfileRedisKey, data, 0).Err(); err != nil {
				log.Printf("[profile_store] WARNING: failed to persist active profile to Redis: %v", err)
			}
			if err := ps.rdb.Publish(ctx, profileChannel, p.Name).Err(); err != nil {
				log.Printf("[profile_store] WARNING: failed to publish profile change: %v", err)
			}
		}
	}

	envelope, _ := json.Marshal(map[string]interface{}{
		"type":    "profile_update",
		"profile": p.Name,
		"ts":      time.Now().UTC().Format(time.RFC3339Nano),
	})

	ps.hub.mu.RLock()
	defer ps.hub.mu.RUnlock()
	for client := range ps.hub.clients {
		select {
		case client.send <- envelope:
		default:
		}
	}
}
