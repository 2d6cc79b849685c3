// Package activitymap flattens auth activity events into a transport
// agnostic record for audit logs and downstream consumers.
package activitymap

import (
	"context"
	"strings"
	"time"

	auth "github.com/goliatone/go-shop-auth"
)

const (
	// MetadataKeyTarget is the metadata key holding the account an action was aimed at
	MetadataKeyTarget = "target"
	// MetadataKeyEmail is the metadata key holding the submitted email
	MetadataKeyEmail = "email"
)

const (
	defaultChannel    = "auth"
	defaultObjectType = "account"
	defaultActorID    = "anonymous"
)

// Normalized is the flattened activity record
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	Outcome    string         `json:"outcome,omitempty"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Fields returns the record as logger key/value pairs
func (n Normalized) Fields() []any {
	out := []any{
		"actor_id", n.ActorID,
		"verb", n.Verb,
		"channel", n.Channel,
		"occurred_at", n.OccurredAt,
	}
	if n.Outcome != "" {
		out = append(out, "outcome", n.Outcome)
	}
	if n.ObjectID != "" {
		out = append(out, "object_type", n.ObjectType, "object_id", n.ObjectID)
	}
	for k, v := range n.Metadata {
		out = append(out, "meta_"+k, v)
	}
	return out
}

// Option customizes normalization behavior.
type Option func(*normalizeOptions)

type normalizeOptions struct {
	channel          string
	objectType       string
	actorFallback    string
	maskEmails       bool
	objectIDResolver func(auth.ActivityEvent) string
}

// Normalize converts an auth.ActivityEvent into a Normalized record.
// The verb drops the channel prefix and the success/failure suffix, which
// moves to Outcome: "auth.login.failure" becomes verb "login", outcome
// "failure".
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	options := defaultNormalizeOptions()
	for _, opt := range opts {
		if opt != nil {
			opt(&options)
		}
	}

	verb, outcome := splitEventType(string(event.EventType), options.channel)

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = time.Now().UTC()
	}

	return Normalized{
		ActorID:    firstNonEmpty(strings.TrimSpace(event.UserID), options.actorFallback),
		Verb:       verb,
		Outcome:    outcome,
		ObjectType: options.objectType,
		ObjectID:   resolveObjectID(event, options.objectIDResolver),
		Channel:    options.channel,
		Metadata:   normalizeMetadata(event, options.maskEmails),
		OccurredAt: occurredAt,
	}
}

// Sink returns an ActivitySink writing normalized records to logger.
// Failures are logged at warn level, everything else at info.
func Sink(logger auth.Logger, opts ...Option) auth.ActivitySink {
	return auth.ActivitySinkFunc(func(_ context.Context, event auth.ActivityEvent) error {
		record := Normalize(event, opts...)
		if record.Outcome == "failure" || event.EventType == auth.ActivityEventAccessDenied {
			logger.Warn("activity", record.Fields()...)
			return nil
		}
		logger.Info("activity", record.Fields()...)
		return nil
	})
}

// WithDefaultChannel sets the channel, also stripped from verbs
func WithDefaultChannel(channel string) Option {
	return func(opts *normalizeOptions) {
		opts.channel = strings.TrimSpace(channel)
	}
}

// WithDefaultObjectType sets the object type for normalized records.
func WithDefaultObjectType(objectType string) Option {
	return func(opts *normalizeOptions) {
		opts.objectType = strings.TrimSpace(objectType)
	}
}

// WithObjectIDResolver overrides object-id extraction from ActivityEvent.
func WithObjectIDResolver(resolver func(auth.ActivityEvent) string) Option {
	return func(opts *normalizeOptions) {
		opts.objectIDResolver = resolver
	}
}

// WithActorFallback sets the actor id used when the event has no user.
func WithActorFallback(actorID string) Option {
	return func(opts *normalizeOptions) {
		opts.actorFallback = strings.TrimSpace(actorID)
	}
}

// WithMaskedEmails replaces the local part of email metadata
func WithMaskedEmails(mask bool) Option {
	return func(opts *normalizeOptions) {
		opts.maskEmails = mask
	}
}

func defaultNormalizeOptions() normalizeOptions {
	return normalizeOptions{
		channel:       defaultChannel,
		objectType:    defaultObjectType,
		actorFallback: defaultActorID,
	}
}

func splitEventType(eventType, channel string) (verb, outcome string) {
	verb = eventType
	if channel != "" {
		verb = strings.TrimPrefix(verb, channel+".")
	}

	if i := strings.LastIndex(verb, "."); i >= 0 {
		switch verb[i+1:] {
		case "success", "failure":
			return verb[:i], verb[i+1:]
		}
	}
	return verb, ""
}

func resolveObjectID(event auth.ActivityEvent, resolver func(auth.ActivityEvent) string) string {
	if resolver != nil {
		return strings.TrimSpace(resolver(event))
	}
	if target, ok := event.Metadata[MetadataKeyTarget].(string); ok && target != "" {
		return target
	}
	return strings.TrimSpace(event.UserID)
}

func normalizeMetadata(event auth.ActivityEvent, maskEmails bool) map[string]any {
	metadata := cloneMap(event.Metadata)
	if metadata == nil {
		return nil
	}

	delete(metadata, MetadataKeyTarget)

	if email, ok := metadata[MetadataKeyEmail].(string); ok && maskEmails {
		metadata[MetadataKeyEmail] = maskEmail(email)
	}

	if len(metadata) == 0 {
		return nil
	}
	return metadata
}

func maskEmail(email string) string {
	at := strings.LastIndex(email, "@")
	if at <= 0 {
		return "***"
	}
	return email[:1] + "***" + email[at:]
}

func cloneMap(in map[string]any) map[string]any {
	if len(in) == 0 {
		return nil
	}
	out := make(map[string]any, len(in))
	for key, value := range in {
		out[key] = value
	}
	return out
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if value != "" {
			return value
		}
	}
	return ""
}
