// Package peripheral models the attachable units a hub owns: motors, lights,
// and sensors.
//
// Each peripheral carries an explicit capability list. A capability is a
// tagged variant: Action capabilities expose command methods, Sensing
// capabilities name the hub callback that receives change notifications and
// the wire mode the values arrive on. The hub builder checks the sensing
// contract at construction time, so a missing callback never surfaces as a
// silent runtime drop.
package peripheral
