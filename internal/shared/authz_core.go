package shared

import "net/http"

// Module keys of the permission catalog.
const (
	ModuleAdmin             = "admin"
	ModuleUsers             = "users"
	ModuleRoles             = "roles"
	ModuleCases             = "cases"
	ModuleCivilCases        = "civil_cases"
	ModuleIndictments       = "indictments"
	ModuleAppeals           = "appeals"
	ModuleDefendants        = "defendants"
	ModuleHearings          = "hearings"
	ModuleTemplates         = "templates"
	ModuleWarrants          = "warrants"
	ModuleStaff             = "staff"
	ModuleTrainings         = "trainings"
	ModuleEquipment         = "equipment"
	ModuleNotes             = "notes"
	ModulePublicNotes       = "public_notes"
	ModuleCalendar          = "calendar"
	ModuleFiles             = "files"
	ModuleDutyLog           = "duty_log"
	ModuleVacation          = "vacation"
	ModuleAddressBook       = "address_book"
	ModuleSeizedAssets      = "seized_assets"
	ModuleBusinessLicenses  = "business_licenses"
	ModuleLicenses          = "licenses"
	ModuleLicenseCategories = "license_categories"
	ModuleTodos             = "todos"
	ModuleTaskAssignments   = "task_assignments"
	ModuleEvidence          = "evidence"
	ModuleRevisions         = "revisions"
	ModuleJusticeReferences = "justice_references"
)

// BaselineModule is granted at least view to every resolved role.
const BaselineModule = ModulePublicNotes

// RoleAdmin is the sentinel full-access role id.
const RoleAdmin = "admin"

// LegacyAdminAlias is the slug of the historical "Administrator" display name.
const LegacyAdminAlias = "administrator"

// ModuleInfo describes one catalog entry.
type ModuleInfo struct {
	Key   string
	Label string
}

var moduleCatalog = []ModuleInfo{
	{ModuleAdmin, "Administrationsbereich"},
	{ModuleUsers, "Benutzerverwaltung"},
	{ModuleRoles, "Rollenverwaltung"},
	{ModuleCases, "Fallakten"},
	{ModuleCivilCases, "Zivilakten"},
	{ModuleIndictments, "Klageschriften"},
	{ModuleAppeals, "Revisionen"},
	{ModuleDefendants, "Angeklagte"},
	{ModuleHearings, "Verhandlungen"},
	{ModuleTemplates, "Vorlagen"},
	{ModuleWarrants, "Haftbefehle"},
	{ModuleStaff, "Mitarbeiter"},
	{ModuleTrainings, "Schulungen"},
	{ModuleEquipment, "Ausrüstung"},
	{ModuleNotes, "Notizen"},
	{ModulePublicNotes, "Öffentliche Notizen"},
	{ModuleCalendar, "Kalender"},
	{ModuleFiles, "Dateien"},
	{ModuleDutyLog, "Dienstprotokoll"},
	{ModuleVacation, "Urlaubsanträge"},
	{ModuleAddressBook, "Adressbuch"},
	{ModuleSeizedAssets, "Beschlagnahmungen"},
	{ModuleBusinessLicenses, "Gewerbeschein"},
	{ModuleLicenses, "Lizenzverwaltung"},
	{ModuleLicenseCategories, "Lizenzkategorien"},
	{ModuleTodos, "Aufgabenliste"},
	{ModuleTaskAssignments, "Aufgabenverteilung"},
	{ModuleEvidence, "Beweismittel"},
	{ModuleRevisions, "Überarbeitungen"},
	{ModuleJusticeReferences, "Rechtsprechung"},
}

var moduleIndex = func() map[string]struct{} {
	idx := make(map[string]struct{}, len(moduleCatalog))
	for _, m := range moduleCatalog {
		idx[m.Key] = struct{}{}
	}
	return idx
}()

// Modules returns the catalog in display order.
func Modules() []ModuleInfo {
	out := make([]ModuleInfo, len(moduleCatalog))
	copy(out, moduleCatalog)
	return out
}

// ModuleKeys returns the catalog keys in display order.
func ModuleKeys() []string {
	keys := make([]string, len(moduleCatalog))
	for i, m := range moduleCatalog {
		keys[i] = m.Key
	}
	return keys
}

// IsKnownModule reports whether key belongs to the catalog.
func IsKnownModule(key string) bool {
	_, ok := moduleIndex[key]
	return ok
}

// FullAccessRoleIDs lists the sentinel roles that bypass the stored matrix.
func FullAccessRoleIDs() []string {
	return []string{RoleAdmin}
}

// IsFullAccessRole reports whether id is a sentinel full-access role.
func IsFullAccessRole(id string) bool {
	for _, sentinel := range FullAccessRoleIDs() {
		if id == sentinel {
			return true
		}
	}
	return false
}

// Guard returns middleware that admits a request only when its user may
// perform action on module.
type Guard func(module string, action Action) func(http.Handler) http.Handler
