package permission

// Permission tokens granted by the default role table. Tokens are opaque
// strings; the backend may define more and [NewTable] accepts any number of them.
const (
	FullSystemAccess    = "full_system_access"
	ApproveOperations   = "approve_operations"
	ViewLogs            = "view_logs"
	ManageUsers         = "manage_users"
	ManageRoles         = "manage_roles"
	ViewReports         = "view_reports"
	ExportReports       = "export_reports"
	ManagePolicies      = "manage_policies"
	ManageCollections   = "manage_collections"
	ManageVehicles      = "manage_vehicles"
	UpdateRequestStatus = "update_request_status"
	ManageComplaints    = "manage_complaints"
	ViewZoneMap         = "view_zone_map"
	SubmitRequests      = "submit_requests"
	FileComplaints      = "file_complaints"
	ViewOwnRequests     = "view_own_requests"
)

// Well-known role ids of the default table.
const (
	RoleCentralAuthority int64 = 1
	RoleWasteCompany     int64 = 2
	RoleMunicipality     int64 = 3
	RoleCitizen          int64 = 4
	RoleAuditor          int64 = 5
)

// PrivilegedRole is the only role id eligible for the unrestricted override.
const PrivilegedRole = RoleCentralAuthority

// DefaultEntries returns a fresh copy of the default role -> token table.
func DefaultEntries() map[int64][]string {
	return map[int64][]string{
		RoleCentralAuthority: {
			FullSystemAccess,
			ApproveOperations,
			ViewLogs,
			ManageUsers,
			ManageRoles,
			ViewReports,
			ExportReports,
			ManagePolicies,
		},
		RoleWasteCompany: {
			ManageCollections,
			ManageVehicles,
			UpdateRequestStatus,
			ViewReports,
			ViewZoneMap,
		},
		RoleMunicipality: {
			ApproveOperations,
			ManageComplaints,
			ManagePolicies,
			ViewReports,
			ExportReports,
			ViewZoneMap,
		},
		RoleCitizen: {
			SubmitRequests,
			FileComplaints,
			ViewOwnRequests,
		},
		RoleAuditor: {
			ViewLogs,
			ViewReports,
		},
	}
}
