package router

import (
	"fmt"
	"net/url"

	"github.com/bkr/apigateway/internal/config"
)

// Build compiles configured routes into a frozen table.
func Build(routes []config.Route) (*Table, error) {
	table := NewTable()

	for i := range routes {
		route, err := compileRoute(routes, &routes[i])
		if err != nil {
			return nil, fmt.Errorf("failed to compile route %s: %w", routes[i].ID, err)
		}
		if err := table.Register(route); err != nil {
			return nil, err
		}
	}

	table.Freeze()
	return table, nil
}

// compileRoute turns one route configuration into a Route.
func compileRoute(all []config.Route, cfg *config.Route) (Route, error) {
	target, err := url.Parse(cfg.Target)
	if err != nil {
		return Route{}, fmt.Errorf("invalid target: %w", err)
	}
	if target.Scheme == "" || target.Host == "" {
		return Route{}, fmt.Errorf("invalid target %q: scheme and host are required", cfg.Target)
	}

	matcher, err := compileMatcher(all, cfg)
	if err != nil {
		return Route{}, err
	}

	return Route{
		ID:       cfg.ID,
		Matcher:  matcher,
		Target:   target,
		Priority: cfg.Priority,
		Timeout:  cfg.Timeout.Duration(),
	}, nil
}

// compileMatcher builds the path matcher and wraps it with the method,
// header and expression restrictions.
func compileMatcher(all []config.Route, cfg *config.Route) (Matcher, error) {
	m := &cfg.Match

	var matcher Matcher
	switch {
	case len(m.Prefixes) > 0:
		matcher = NewPrefixSetMatcher(m.Prefixes...)
	case m.Base != "":
		excluded, err := resolveExclusions(all, cfg)
		if err != nil {
			return nil, err
		}
		matcher = NewComplementMatcher(m.Base, excluded...)
	case m.Expression == "":
		return nil, fmt.Errorf("match requires prefixes, base or expression")
	}

	if len(m.Methods) > 0 {
		matcher = NewMethodMatcher(matcher, m.Methods...)
	}
	if len(m.Headers) > 0 {
		matcher = NewHeaderMatcher(matcher, m.Headers)
	}
	if m.Expression != "" {
		expr, err := NewExpressionMatcher(matcher, m.Expression)
		if err != nil {
			return nil, err
		}
		matcher = expr
	}

	return matcher, nil
}

// resolveExclusions returns the explicit exclusions followed by the
// prefixes of every route named in excludeRoutes.
func resolveExclusions(all []config.Route, cfg *config.Route) ([]string, error) {
	excluded := append([]string(nil), cfg.Match.Exclude...)

	for _, id := range cfg.Match.ExcludeRoutes {
		if id == cfg.ID {
			return nil, fmt.Errorf("route cannot exclude itself")
		}
		ref := findRoute(all, id)
		if ref == nil {
			return nil, fmt.Errorf("excluded route %q not found", id)
		}
		if len(ref.Match.Prefixes) == 0 {
			return nil, fmt.Errorf("excluded route %q has no prefixes", id)
		}
		excluded = append(excluded, ref.Match.Prefixes...)
	}

	return excluded, nil
}

func findRoute(all []config.Route, id string) *config.Route {
	for i := range all {
		if all[i].ID == id {
			return &all[i]
		}
	}
	return nil
}
