package driven

// Template names resolved by TemplateStore.
const (
	TemplateViewScript     = "view_script"
	TemplateViewScriptCopy = "view_script_copy"
)

// TemplateStore loads user-editable command templates from disk,
// falling back to built-in defaults when no file exists.
type TemplateStore interface {
	// Load returns the template with the given name.
	Load(name string) (string, error)

	// Reload clears any cached templates, forcing fresh loads.
	Reload()

	// Dir returns the template directory path.
	Dir() string
}
