package model

// Role names carried in the JWT "role" claim.
const (
    RoleGuest  = "GUEST"
    RoleHost   = "HOST"
    RoleSystem = "SYSTEM"
)

// User is the booking core's read-only view of a guest or host.  Profiles
// are owned by the user service; the core only needs existence and the
// notification preference.
//
// Fields:
//  ID                   – primary key identifier.
//  Role                 – GUEST or HOST.
//  NotificationsEnabled – when false the user receives no notifications.
type User struct {
    ID                   uint64 `db:"id"`                    // users.id
    Role                 string `db:"role"`                  // users.role
    NotificationsEnabled bool   `db:"notifications_enabled"` // users.notifications_enabled
}

// Space is the booking core's read-only view of a bookable space.
//
// Fields:
//  ID     – primary key identifier.
//  HostID – user ID of the owning host.
//  Title  – display name used in notification wording.
type Space struct {
    ID     uint64 `db:"id"`      // spaces.id
    HostID uint64 `db:"host_id"` // spaces.host_id
    Title  string `db:"title"`   // spaces.title
}

// Actor identifies who is performing an operation.  System actors are
// internal callers (payment settlement, operators) and bypass guest/host
// ownership checks where the state machine allows it.
type Actor struct {
    ID   uint64
    Role string
}

// IsSystem reports whether the actor is an internal caller.
func (a Actor) IsSystem() bool { return a.Role == RoleSystem }

// SystemActor is used for cascaded transitions initiated by the core itself.
var SystemActor = Actor{Role: RoleSystem}
