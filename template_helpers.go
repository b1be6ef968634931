package dashboard

import (
	"github.com/goliatone/go-dashboard/auth"
	"github.com/goliatone/go-dashboard/export"
	"github.com/goliatone/go-router"
)

var TemplateUserKey = "current_user"

// TemplateHelpers returns helpers and constants for the view engine's global
// data. The helpers are plain functions, registered with AddFunc, so
// templates call them:
//
//	{% if is_at_least(current_user, roles.admin) %}
//	{% if is_authenticated(current_user) %}
//	{% if region.slot == slots.primary %}
func TemplateHelpers() map[string]any {
	return map[string]any{
		"is_authenticated": isAuthenticated,
		"is_at_least":      isAtLeast,
		"roles": map[string]string{
			"guest":  string(auth.RoleGuest),
			"member": string(auth.RoleMember),
			"admin":  string(auth.RoleAdmin),
			"owner":  string(auth.RoleOwner),
		},
		"slots": map[string]string{
			"primary":   string(SlotPrimary),
			"secondary": string(SlotSecondary),
		},
	}
}

// FrameViewContext turns a frame into the data the dashboard view renders.
// widgetRoute is the dashboard URL the navigation links point to.
func FrameViewContext(frame Frame, widgetRoute, widgetParam string) router.ViewContext {
	active := frame.ActiveWidget()

	nav := make([]map[string]any, 0, len(frame.Widgets))
	for _, d := range frame.Widgets {
		nav = append(nav, map[string]any{
			"id":       d.ID,
			"title":    d.Title,
			"category": string(d.Category),
			"active":   d.ID == active,
			"href":     widgetRoute + "?" + widgetParam + "=" + d.ID,
		})
	}

	view := router.ViewContext{
		"phase":         string(frame.Phase),
		"loading":       frame.Phase == PhaseLoading,
		"ready":         frame.Phase == PhaseReady,
		"widgets":       nav,
		"active_widget": active,
		"formats":       formatNames(),
		TemplateUserKey: frame.User,
	}

	if frame.Banner != nil {
		view["banner"] = frame.Banner.Error()
	}

	regions := make([]map[string]any, 0, 1)
	for _, r := range frame.Regions() {
		region := map[string]any{
			"id":       r.Widget.ID,
			"title":    r.Widget.Title,
			"template": r.Widget.Template + ".html",
			"slot":     string(r.Slot),
			"data":     r.Data,
			"empty":    r.Err != nil || len(r.Data) == 0,
		}
		if r.Err != nil {
			region["error"] = r.Err.Error()
		}
		regions = append(regions, region)
	}
	view["regions"] = regions

	return view
}

func formatNames() []string {
	formats := export.SupportedFormats()
	out := make([]string, 0, len(formats))
	for _, f := range formats {
		out = append(out, f.String())
	}
	return out
}

func isAuthenticated(user any) bool {
	identity, ok := user.(*auth.Identity)
	return ok && identity != nil
}

func isAtLeast(user any, minRole string) bool {
	identity, ok := user.(*auth.Identity)
	if !ok || identity == nil {
		return false
	}
	role, ok := auth.ParseRole(minRole)
	if !ok {
		return false
	}
	return identity.Role.IsAtLeast(role)
}
