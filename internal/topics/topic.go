package topics

// Role is a staff role addressable as a multicast group within a restaurant.
type Role string

const (
	RoleWaiter  Role = "waiter"
	RoleKitchen Role = "kitchen"
)

func ValidRole(r Role) bool { return r == RoleWaiter || r == RoleKitchen }

type Kind uint8

const (
	KindRole Kind = iota + 1
	KindTable
	KindOrder
)

// Topic is a typed multicast address. It is a comparable value usable as a
// map key, so publish and subscribe sites cannot drift on a string format.
type Topic struct {
	Kind         Kind
	RestaurantID string
	Role         Role
	TableID      string
	OrderID      string
}

func ForRole(restaurantID string, role Role) Topic {
	return Topic{Kind: KindRole, RestaurantID: restaurantID, Role: role}
}

func ForTable(tableID string) Topic {
	return Topic{Kind: KindTable, TableID: tableID}
}

func ForOrder(orderID string) Topic {
	return Topic{Kind: KindOrder, OrderID: orderID}
}
