package replication

import (
	"errors"
	"fmt"
)

func errCannotJoinSlaveToSlave(masterAddress string) error {
	return fmt.Errorf("replication: cannot join a slave to a slave, connect to master at %s instead", masterAddress)
}

var errMalformedAck = errors.New("replication: malformed REPLCONF ACK reply")
