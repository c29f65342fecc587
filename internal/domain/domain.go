package domain

import (
	"github.com/yungbote/anything-backend/internal/domain/apps"
	"github.com/yungbote/anything-backend/internal/domain/jobs"
	"github.com/yungbote/anything-backend/internal/domain/org"
	"github.com/yungbote/anything-backend/internal/domain/requests"
	"github.com/yungbote/anything-backend/internal/domain/user"
)

type User = user.User

type Organization = org.Organization
type OrganizationMember = org.OrganizationMember
type MemberRole = org.MemberRole

const (
	RoleAdmin  = org.RoleAdmin
	RoleMember = org.RoleMember
	RoleViewer = org.RoleViewer
)

type RequestStatus = requests.Status
type GenerationRequest = requests.GenerationRequest
type UpdateRequest = requests.UpdateRequest

const (
	RequestPending    = requests.StatusPending
	RequestProcessing = requests.StatusProcessing
	RequestCompleted  = requests.StatusCompleted
	RequestFailed     = requests.StatusFailed
)

type App = apps.App
type AppStatus = apps.AppStatus
type Page = apps.Page
type Permission = apps.Permission
type DataStoreEntry = apps.DataStoreEntry
type ContextQuery = apps.ContextQuery
type QueryType = apps.QueryType
type ValueType = apps.ValueType
type Value = apps.Value

const (
	AppActive   = apps.AppActive
	AppUpdating = apps.AppUpdating
	AppError    = apps.AppError

	QueryLookup = apps.QueryLookup
	QuerySelect = apps.QuerySelect
	QueryCount  = apps.QueryCount

	ValueStr      = apps.ValueStr
	ValueInt      = apps.ValueInt
	ValueFloat    = apps.ValueFloat
	ValueBool     = apps.ValueBool
	ValueJSON     = apps.ValueJSON
	ValueDate     = apps.ValueDate
	ValueDateTime = apps.ValueDateTime
)

var (
	DefaultPermissions = apps.DefaultPermissions
	ParseValue         = apps.ParseValue
	ValidValue         = apps.ValidValue
	NormalizeValueType = apps.NormalizeValueType
)

type JobRun = jobs.JobRun

const (
	JobStatusQueued    = jobs.StatusQueued
	JobStatusRunning   = jobs.StatusRunning
	JobStatusSucceeded = jobs.StatusSucceeded
	JobStatusFailed    = jobs.StatusFailed
)
