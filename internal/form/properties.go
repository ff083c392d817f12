package form

// Option is one selectable authorizable property category.
type Option struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

// AuthorizableProperties lists, in display order, the property categories a
// reporter can be authorized for.
var AuthorizableProperties = []Option{
	{Value: "administration", Label: "Administration"},
	{Value: "plants", Label: "Plants"},
	{Value: "packages", Label: "Packages"},
	{Value: "transfers", Label: "Transfers"},
	{Value: "sales", Label: "Sales"},
	{Value: "reports", Label: "Reports"},
	{Value: "financials", Label: "Financials"},
}

// IsAuthorizable reports whether value names a known category.
func IsAuthorizable(value string) bool {
	for _, o := range AuthorizableProperties {
		if o.Value == value {
			return true
		}
	}
	return false
}
