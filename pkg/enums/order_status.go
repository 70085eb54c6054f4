package enums

import "fmt"

// OrderStatus is the numeric order state stored in the tenant orders table.
type OrderStatus int

const (
	// OrderStatusPending is the state of every freshly placed order.
	OrderStatusPending OrderStatus = 0
)

var orderStatusNames = map[OrderStatus]string{
	OrderStatusPending: "pending",
}

// String implements fmt.Stringer.
func (s OrderStatus) String() string {
	if name, ok := orderStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status_%d", int(s))
}

// IsValid reports whether the value is a known OrderStatus.
func (s OrderStatus) IsValid() bool {
	_, ok := orderStatusNames[s]
	return ok
}
