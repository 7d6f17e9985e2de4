package enums

// ConnectivityState is the last observed reachability of the remote API.
type ConnectivityState string

const (
	ConnectivityUnknown ConnectivityState = "unknown"
	ConnectivityOnline  ConnectivityState = "online"
	ConnectivityOffline ConnectivityState = "offline"
)

func (s ConnectivityState) String() string {
	return string(s)
}
