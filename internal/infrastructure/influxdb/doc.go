// Package influxdb exports mqttmon traffic statistics to InfluxDB.
//
// Long-running monitors can record their counters (messages seen, payload
// bytes, undecodable payloads, connect attempts, disconnects) as a time
// series. Message contents are never stored.
//
// # Usage
//
//	exp, err := influxdb.Dial(ctx, cfg.InfluxDB)
//	if err != nil {
//	    return err
//	}
//	defer exp.Close()
//
//	exp.OnError(func(err error) { log.Warn("traffic export", "error", err) })
//	exp.Run(ctx, map[string]string{"broker": url, "client_id": id}, sample)
//
// # Error Handling
//
// Dial fails with ErrDisabled or ErrUnreachable. After that nothing is
// returned: readings dropped during a failed health check (ErrUnhealthy)
// and batches the server rejects (ErrRejected) go to the OnError callback.
// Export failures never stop the monitor.
package influxdb
