package buyers

// UpsertInput carries the externally sourced buyer profile. The external ref
// comes from the URL, not the body, so a retried upsert can never move a
// profile between buyers.
type UpsertInput struct {
	DisplayName string  `json:"display_name"`
	Phone       string  `json:"phone"`
	Address     *string `json:"address"`
	Porch       *string `json:"porch"`
	Floor       *string `json:"floor"`
	Apartment   *string `json:"apartment"`
}
