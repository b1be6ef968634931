package analytics

import (
	"strings"
	"time"
)

const (
	// MetadataKeyWidget stores the widget an event happened on.
	MetadataKeyWidget = "widget"
	// MetadataKeySession stores the session id.
	MetadataKeySession = "session_id"
)

const (
	defaultChannel    = "dashboard"
	defaultObjectType = "user"
	defaultActorID    = "anonymous"
)

// Record is a transport-agnostic activity shape for downstream systems.
type Record struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// RecordOption customizes how an Event is flattened.
type RecordOption func(*recordOptions)

type recordOptions struct {
	channel          string
	objectType       string
	actorFallback    string
	objectIDResolver func(Event) string
}

// ToRecord converts an Event into a Record.
func ToRecord(event Event, opts ...RecordOption) Record {
	options := recordOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	actorID := strings.TrimSpace(event.UserID)
	if actorID == "" {
		actorID = options.actorFallback
	}

	objectID := strings.TrimSpace(event.UserID)
	if options.objectIDResolver != nil {
		objectID = strings.TrimSpace(options.objectIDResolver(event))
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Record{
		ActorID:    actorID,
		Verb:       string(event.Type),
		ObjectType: options.objectType,
		ObjectID:   objectID,
		Channel:    options.channel,
		Metadata:   recordMetadata(event),
		OccurredAt: occurredAt,
	}
}

// WithChannel sets the channel for records.
func WithChannel(channel string) RecordOption {
	return func(opts *recordOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithObjectType sets the object type for records.
func WithObjectType(objectType string) RecordOption {
	return func(opts *recordOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object id extraction.
func WithObjectIDResolver(resolver func(Event) string) RecordOption {
	return func(opts *recordOptions) {
		opts.objectIDResolver = resolver
	}
}

func recordMetadata(event Event) map[string]any {
	var metadata map[string]any
	if len(event.Metadata) > 0 {
		metadata = make(map[string]any, len(event.Metadata)+2)
		for k, v := range event.Metadata {
			metadata[k] = v
		}
	}

	set := func(key, value string) {
		if value = strings.TrimSpace(value); value == "" {
			return
		}
		if metadata == nil {
			metadata = map[string]any{}
		}
		if _, exists := metadata[key]; !exists {
			metadata[key] = value
		}
	}

	set(MetadataKeyWidget, event.Widget)
	set(MetadataKeySession, event.SessionID)

	return metadata
}
