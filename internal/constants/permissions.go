package constants

const (
	BuyLot          = "buy_lot"
	ViewPurchase    = "view_purchase"
	RecordPayment   = "record_payment"
	ManagePurchases = "manage_purchases"
	ManagePayments  = "manage_payments"
	SyncLots        = "sync_lots"
	ManageUsers     = "manage_users"
)
