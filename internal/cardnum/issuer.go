package cardnum

import "strconv"

// Issuer is a card network.
type Issuer string

const (
	Unknown         Issuer = "unknown"
	Visa            Issuer = "visa"
	Mastercard      Issuer = "mastercard"
	AmericanExpress Issuer = "amex"
	Discover        Issuer = "discover"
	JCB             Issuer = "jcb"
	DinersClub      Issuer = "diners_club"
	UnionPay        Issuer = "unionpay"
)

// iinRange matches PANs whose first len(strconv.Itoa(lo)) digits fall in [lo, hi].
type iinRange struct {
	lo, hi int
	issuer Issuer
}

// Order matters: more specific prefixes come first.
var iinRanges = []iinRange{
	{34, 34, AmericanExpress},
	{37, 37, AmericanExpress},
	{300, 305, DinersClub},
	{36, 36, DinersClub},
	{38, 39, DinersClub},
	{3528, 3589, JCB},
	{6011, 6011, Discover},
	{644, 649, Discover},
	{65, 65, Discover},
	{622126, 622925, Discover},
	{62, 62, UnionPay},
	{2221, 2720, Mastercard},
	{51, 55, Mastercard},
	{4, 4, Visa},
}

// IssuerOf detects the card network from the issuer identification number.
func IssuerOf(pan string) Issuer {
	if !IsDigits(pan) {
		return Unknown
	}
	for _, r := range iinRanges {
		n := len(strconv.Itoa(r.lo))
		if len(pan) < n {
			continue
		}
		prefix, err := strconv.Atoi(pan[:n])
		if err != nil {
			continue
		}
		if prefix >= r.lo && prefix <= r.hi {
			return r.issuer
		}
	}
	return Unknown
}

// String implements fmt.Stringer with a human readable network name.
func (i Issuer) String() string {
	switch i {
	case Visa:
		return "Visa"
	case Mastercard:
		return "Mastercard"
	case AmericanExpress:
		return "American Express"
	case Discover:
		return "Discover"
	case JCB:
		return "JCB"
	case DinersClub:
		return "Diners Club"
	case UnionPay:
		return "UnionPay"
	default:
		return "Unknown"
	}
}
