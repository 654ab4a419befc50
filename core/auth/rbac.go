package auth

import (
	"fmt"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
)

const (
	RoleAdmin      = "admin"
	RoleQA         = "qa"
	RoleOriginator = "originator"
	RoleViewer     = "viewer"
)

const (
	ObjIncidents   = "incidents"
	ObjStages      = "stages"
	ObjSelection   = "selection"
	ObjAttachments = "attachments"
)

const (
	ActRead   = "read"
	ActWrite  = "write"
	ActStatus = "status"
)

const rbacModel = `
[request_definition]
r = sub, obj, act

[policy_definition]
p = sub, obj, act

[role_definition]
g = _, _

[policy_effect]
e = some(where (p.eft == allow))

[matchers]
m = g(r.sub, p.sub) && (p.obj == "*" || r.obj == p.obj) && (p.act == "*" || r.act == p.act)
`

var defaultPolicies = [][]string{
	{RoleViewer, ObjIncidents, ActRead},
	{RoleViewer, ObjStages, ActRead},
	{RoleViewer, ObjSelection, ActRead},
	{RoleViewer, ObjAttachments, ActRead},
	{RoleOriginator, ObjIncidents, ActWrite},
	{RoleOriginator, ObjStages, ActWrite},
	{RoleOriginator, ObjSelection, ActWrite},
	{RoleOriginator, ObjAttachments, ActWrite},
	{RoleQA, ObjIncidents, ActStatus},
	{RoleAdmin, "*", "*"},
}

// roles inherit left to right: qa can do what an originator can.
var defaultInheritance = [][]string{
	{RoleOriginator, RoleViewer},
	{RoleQA, RoleOriginator},
}

// Policy answers role/object/action questions with a casbin enforcer.
type Policy struct {
	enforcer *casbin.Enforcer
}

func NewPolicy() (*Policy, error) {
	m, err := model.NewModelFromString(rbacModel)
	if err != nil {
		return nil, fmt.Errorf("rbac model: %w", err)
	}
	e, err := casbin.NewEnforcer(m)
	if err != nil {
		return nil, fmt.Errorf("rbac enforcer: %w", err)
	}
	if _, err := e.AddPolicies(defaultPolicies); err != nil {
		return nil, fmt.Errorf("rbac policies: %w", err)
	}
	if _, err := e.AddGroupingPolicies(defaultInheritance); err != nil {
		return nil, fmt.Errorf("rbac roles: %w", err)
	}
	return &Policy{enforcer: e}, nil
}

func (p *Policy) Allowed(roles []string, obj, act string) bool {
	if p == nil || p.enforcer == nil {
		return false
	}
	for _, role := range roles {
		ok, err := p.enforcer.Enforce(role, obj, act)
		if err == nil && ok {
			return true
		}
	}
	return false
}
