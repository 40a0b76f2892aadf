//go:generate mockgen -source=../logger.go           -destination=./mock_logger.go           -package=mocks
//go:generate mockgen -source=../message_consumer.go -destination=./mock_message_consumer.go -package=mocks
//go:generate mockgen -source=../feed_service.go     -destination=./mock_feed_service.go     -package=mocks
//go:generate mockgen -source=../locker.go           -destination=./mock_locker.go           -package=mocks
//go:generate mockgen -source=../counter_store.go    -destination=./mock_counter_store.go   -package=mocks

package mocks
