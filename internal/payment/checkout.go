package payment

import (
	"html/template"
	"io"
)

var checkoutTmpl = template.Must(template.New("checkout").Parse(`<!DOCTYPE html>
<html><head><meta name="viewport" content="width=device-width, initial-scale=1"/><title>Complete Payment</title></head>
<body>
<p>Loading payment gateway...</p>
<script src="https://checkout.razorpay.com/v1/checkout.js"></script>
<script>
  var options = {
    key: {{.KeyID}},
    order_id: {{.OrderID}},
    name: {{.Name}},
    description: {{.Description}},
    handler: function (response) {
      document.body.innerHTML = '<h2>Payment Successful! Verifying...</h2>';
      fetch({{.VerifyPath}}, {method: 'POST', headers: {'Content-Type': 'application/json'}, body: JSON.stringify({
        razorpay_payment_id: response.razorpay_payment_id,
        razorpay_order_id: response.razorpay_order_id,
        razorpay_signature: response.razorpay_signature
      })}).then(function (r) { return r.json(); }).then(function (data) {
        if (data.status === 'success') {
          if (window.PaymentHandler && window.PaymentHandler.postMessage) { window.PaymentHandler.postMessage('success'); }
          document.body.innerHTML = '<h2>Payment Verified!</h2><p>Processing... You can close this window.</p>';
        } else {
          document.body.innerHTML = '<h2>Verification Failed.</h2>';
        }
      }).catch(function () { document.body.innerHTML = '<h2>An error occurred during verification.</h2>'; });
    },
    modal: { ondismiss: function () { document.body.innerHTML = '<h2>Payment Cancelled.</h2><p>You can close this window.</p>'; } },
    theme: { color: {{.ThemeColor}} }
  };
  var rzp1 = new Razorpay(options);
  rzp1.on('payment.failed', function () { document.body.innerHTML = '<h2>Payment Failed.</h2>'; });
  rzp1.open();
</script>
</body></html>
`))

type CheckoutPage struct {
	KeyID       string
	OrderID     string
	Name        string
	Description string
	VerifyPath  string
	ThemeColor  string
}

// NewCheckoutPage fills in the storefront defaults.
func NewCheckoutPage(keyID, orderID string) CheckoutPage {
	return CheckoutPage{
		KeyID:       keyID,
		OrderID:     orderID,
		Name:        "Lustra AI",
		Description: "Coin Purchase",
		VerifyPath:  "/payment-verification",
		ThemeColor:  "#E3C887",
	}
}

// RenderCheckout writes the Razorpay Checkout page. Values are escaped for their JS context.
func RenderCheckout(w io.Writer, page CheckoutPage) error {
	return checkoutTmpl.Execute(w, page)
}
