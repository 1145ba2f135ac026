package avvance

// Address carries billing or shipping details for a financing application.
type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	Region     string `json:"region"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

// Consumer identifies the applicant.
type Consumer struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// CreateFinancingRequest is the input to CreateFinancing. OrderRef is the
// caller's foreign key for the order/cart entity; ReturnURL is where the
// shopper lands after the hosted onboarding flow completes.
type CreateFinancingRequest struct {
	OrderRef    string
	AmountCents int64
	Currency    string
	Consumer    Consumer
	Billing     Address
	Shipping    Address
	ReturnURL   string
}

// CreateFinancingResult is what a successful create returns. Exactly one
// financing attempt maps to one (ApplicationID, PartnerSessionID) pair; the
// partner session id is generated fresh by the client for every attempt.
type CreateFinancingResult struct {
	ApplicationID    string
	PartnerSessionID string
	OnboardingURL    string
}

// LoanStatus is the remote view of an application's lifecycle position.
type LoanStatus struct {
	Status        string `json:"status"`
	TransactionID string `json:"transactionId,omitempty"`
	ApprovalCode  string `json:"approvalCode,omitempty"`
}

// NotificationStatusResult is the payload of a status poll.
type NotificationStatusResult struct {
	ApplicationID    string     `json:"applicationId"`
	PartnerSessionID string     `json:"partnerSessionId,omitempty"`
	LoanStatus       LoanStatus `json:"loanStatus"`
	Raw              []byte     `json:"-"` // original body, recorded in session history
}

// TransactionResult is returned by void and refund operations.
type TransactionResult struct {
	Status        string `json:"status"`
	TransactionID string `json:"transactionId,omitempty"`
}

// PaymentOption is one installment plan from the price-breakdown endpoint.
type PaymentOption struct {
	TermMonths          int    `json:"termMonths"`
	MonthlyPaymentCents int64  `json:"monthlyPaymentCents"`
	AprBasisPoints      int    `json:"aprBasisPoints"`
	FinanceChargeCents  int64  `json:"financeChargeCents"`
	Label               string `json:"label,omitempty"`
}

// PriceBreakdown lists the plans available for a given amount.
type PriceBreakdown struct {
	AmountCents int64           `json:"amountCents"`
	Options     []PaymentOption `json:"paymentOptions"`
}

// PreApprovalResult is the outcome of a pre-approval lead creation. Both
// fields are required; the remote assigns RequestID and it becomes the
// reconciliation key for the eventual webhook.
type PreApprovalResult struct {
	OnboardingURL string
	RequestID     string
}

// wire payloads

type createFinancingPayload struct {
	PartnerSessionID string   `json:"partnerSessionId"`
	OrderRef         string   `json:"merchantOrderId"`
	AmountCents      int64    `json:"amount"`
	Currency         string   `json:"currency"`
	Consumer         Consumer `json:"consumer"`
	BillingAddress   Address  `json:"billingAddress"`
	ShippingAddress  Address  `json:"shippingAddress"`
	ReturnURL        string   `json:"returnUrl"`
}

type createFinancingResponse struct {
	ApplicationID string `json:"applicationId"`
	OnboardingURL string `json:"onboardingUrl"`
}

type preApprovalPayload struct {
	SessionID    string `json:"sessionId"`
	MerchantHash string `json:"merchantHash"`
}

type preApprovalResponse struct {
	OnboardingURL string `json:"onboardingUrl"`
	RequestID     string `json:"requestId"`
}

type refundPayload struct {
	AmountCents int64 `json:"amount"`
}

type priceBreakdownPayload struct {
	AmountCents int64 `json:"amount"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int64  `json:"expires_in"`
}

type remoteErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Error   struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}
