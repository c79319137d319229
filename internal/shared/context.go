package shared

import "context"

type actorContextKey struct{}

// Actor identifies who issued a request and in which tenant environment.
type Actor struct {
	UserID        string
	EnvironmentID string
}

// ContextWithActor stores the actor in context.
func ContextWithActor(ctx context.Context, actor Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

// ActorFromContext extracts the actor from context.
func ActorFromContext(ctx context.Context) Actor {
	actor, _ := ctx.Value(actorContextKey{}).(Actor)
	return actor
}
