package cache

import "time"

const (
	// Префиксы ключей. Формат ключей совместим с существующими данными и не меняется.
	checkoutKeyPrefix               = "checkout:"
	subscriptionKeyPrefix           = "subscription:"
	subscriptionByCustomerKeyPrefix = "subscription:customer:"
	customerKeyPrefix               = "customer:"
	customerByEmailKeyPrefix        = "customer:email:"
	customerByUserIDKeyPrefix       = "customer:userId:"
)

// TTL политики кэша
const (
	NoExpiry                time.Duration = 0
	CheckoutTTL                           = time.Hour
	SubscriptionTTL                       = time.Hour
	CanceledSubscriptionTTL               = 24 * time.Hour
	CustomerTTL                           = 24 * time.Hour
)

func CheckoutKey(sessionID string) string {
	return checkoutKeyPrefix + sessionID
}

func SubscriptionKey(subscriptionID string) string {
	return subscriptionKeyPrefix + subscriptionID
}

// SubscriptionByCustomerKey - вторичный индекс: хранит ID подписки клиента
func SubscriptionByCustomerKey(customerID string) string {
	return subscriptionByCustomerKeyPrefix + customerID
}

func CustomerKey(customerID string) string {
	return customerKeyPrefix + customerID
}

// CustomerByEmailKey - вторичный индекс: хранит ID клиента
func CustomerByEmailKey(email string) string {
	return customerByEmailKeyPrefix + email
}

// CustomerByUserIDKey - вторичный индекс: хранит ID клиента Stripe для внешнего пользователя
func CustomerByUserIDKey(userID string) string {
	return customerByUserIDKeyPrefix + userID
}
