// Package ws streams a playground over a WebSocket.
//
// On connect the client receives a snapshot. Afterwards it receives every
// output record of the current generation and every state change as they
// happen, plus a fresh snapshot after each command it sends:
//
//	-> {"type":"edit","source":"console.log(1)"}
//	-> {"type":"run"}
//	<- {"type":"state","generation":1,"state":"running"}
//	<- {"type":"output","generation":1,"record":{"kind":"log","content":"1",...}}
//	<- {"type":"state","generation":1,"state":"idle"}
//	<- {"type":"snapshot","generation":1,"snapshot":{...}}
package ws
