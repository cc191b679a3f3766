package revue

// Account is the payload of GET accounts/me.
type Account struct {
	ProfileID       string `json:"profile_id"`
	ProfileURL      string `json:"profile_url,omitempty"`
	FirstName       string `json:"first_name,omitempty"`
	LastName        string `json:"last_name,omitempty"`
	ProfileImageURL string `json:"profile_image_url,omitempty"`
	ProfileTitle    string `json:"profile_title,omitempty"`
	Description     string `json:"description,omitempty"`
}

// List is a Revue subscriber list.
type List struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	Description     *string `json:"description,omitempty"`
	SubscriberCount int64   `json:"subscribers_count,omitempty"`
}

// Issue is a newsletter issue.
type Issue struct {
	ID          int64  `json:"id"`
	Title       string `json:"title"`
	Subject     string `json:"subject,omitempty"`
	Description string `json:"description,omitempty"`
	SentAt      string `json:"sent_at,omitempty"`
	URL         string `json:"url,omitempty"`
}

// Subscriber is a newsletter subscriber.
//
// First and last name are nullable on Revue's side.
type Subscriber struct {
	ID          int64   `json:"id,omitempty"`
	ListID      int64   `json:"list_id,omitempty"`
	Email       string  `json:"email"`
	FirstName   *string `json:"first_name"`
	LastName    *string `json:"last_name"`
	LastChanged string  `json:"last_changed,omitempty"`
}

// Item is a link or text block attached to an issue.
type Item struct {
	Title        string `json:"title"`
	CreatedAt    string `json:"created_at,omitempty"`
	URL          string `json:"url,omitempty"`
	Description  string `json:"description,omitempty"`
	Order        *int64 `json:"order"`
	TitleDisplay string `json:"title_display,omitempty"`
	ShortURL     string `json:"short_url,omitempty"`
	ThumbURL     string `json:"thumb_url,omitempty"`
	DefaultImage string `json:"default_image,omitempty"`
	HashID       string `json:"hash_id,omitempty"`
}

// Export is the payload of GET exports/{id}. It extends ExportRecord with download links.
type Export struct {
	ExportRecord
	SubscribedURL   string `json:"subscribed_url,omitempty"`
	UnsubscribedURL string `json:"unsubscribe_url,omitempty"`
}
