package generation

// ImageBody is one entry of the images array.
type ImageBody struct {
	URL    string `json:"url"`
	Base64 string `json:"base64,omitempty"`
}

type CreditsBody struct {
	Cost    int `json:"cost"`
	Balance int `json:"balance"`
}

// SuccessBody is the 200 response of the generation endpoint.
type SuccessBody struct {
	ImageURL string      `json:"imageUrl"`
	Images   []ImageBody `json:"images"`
	Credits  CreditsBody `json:"credits"`
}

// ErrorBody is the response of every failed generation request.
type ErrorBody struct {
	Error   Code   `json:"error"`
	Message string `json:"message"`
}

// NewSuccessBody reports the balance as it was before the debit minus the
// cost, floored at zero.
func NewSuccessBody(p Payload, cost, balanceBefore int) SuccessBody {
	url := p.ImageURL()
	return SuccessBody{
		ImageURL: url,
		Images:   []ImageBody{{URL: url, Base64: p.Base64Value()}},
		Credits: CreditsBody{
			Cost:    cost,
			Balance: max(balanceBefore-cost, 0),
		},
	}
}

func NewErrorBody(e *Error) ErrorBody {
	return ErrorBody{Error: e.Code, Message: e.Message}
}
